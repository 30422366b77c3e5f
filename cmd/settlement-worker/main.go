package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/config"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/settlement"
	"github.com/lockerbid/bidding-engine/internal/store"
)

func main() {
	log := logrus.New()
	log.Info("starting settlement-worker")

	cfg, err := config.LoadWorker()
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

	clk := clock.Clock{
		Window:    cfg.Auction.ExtensionWindow,
		Extension: cfg.Auction.Extension,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finalizer := settlement.NewFinalizer(pg, views, clk, cfg.FinalizeInterval, cfg.ArchiveRetention, cfg.SettleBatchSize, log)
	go finalizer.Run(ctx)
	log.Info("finalizer started")

	log.Info("connecting to NATS")
	consumer, err := settlement.NewOutcomeConsumer(cfg.NatsURL, pg, views, clk, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to NATS")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	log.Info("worker stopped gracefully")
}
