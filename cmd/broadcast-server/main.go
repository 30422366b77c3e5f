package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/config"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/ws"
)

func main() {
	log := logrus.New()
	log.Info("starting broadcast-server")

	cfg, err := config.LoadBroadcast()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.Info("connecting to Redis")
	subscriber, err := session.NewSubscriber(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := subscriber.SubscribeAll(ctx); err != nil {
		log.WithError(err).Fatal("failed to subscribe to session updates")
	}

	manager := ws.NewManager(log)
	go manager.Run()

	updates := make(chan *session.Update, 256)

	go func() {
		if err := subscriber.Listen(ctx, updates); err != nil && err != context.Canceled {
			log.WithError(err).Error("subscriber stopped")
		}
	}()

	// Forward committed session views to WebSocket watchers.
	go func() {
		for update := range updates {
			manager.Broadcast(update.ItemID, update.Payload)
		}
	}()

	handler := ws.NewHandler(manager, log)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("broadcast-server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped gracefully")
}
