package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/admission"
	"github.com/lockerbid/bidding-engine/internal/bidcheck"
	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/config"
	"github.com/lockerbid/bidding-engine/internal/eligibility"
	"github.com/lockerbid/bidding-engine/internal/events"
	"github.com/lockerbid/bidding-engine/internal/handlers"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/store"
)

func main() {
	log := logrus.New()
	log.Info("starting api-server")

	cfg, err := config.LoadAPI()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.Info("connecting to PostgreSQL")
	pg, err := store.NewPostgres(cfg.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer pg.Close()

	if err := pg.InitSchema(context.Background()); err != nil {
		log.WithError(err).Fatal("failed to initialize schema")
	}

	log.Info("connecting to Redis")
	views, err := session.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Auction.SessionTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer views.Close()

	log.Info("connecting to NATS")
	outcomes, err := events.NewPublisher(cfg.NatsURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to NATS")
	}
	defer outcomes.Close()

	clk := clock.Clock{
		Window:    cfg.Auction.ExtensionWindow,
		Extension: cfg.Auction.Extension,
	}
	gate := eligibility.NewGate(eligibility.NewHTTPProvider(cfg.VerificationURL, cfg.VerificationTimeout))
	validator := bidcheck.New(clk, gate)
	controller := admission.NewController(pg, validator, views, outcomes, cfg.Auction.LockWaitTimeout, log)

	handler := handlers.NewHandler(controller, pg, views, gate, clk, log)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("api-server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped gracefully")
}
