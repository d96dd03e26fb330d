package main

import (
	"context"
	"errors"
	"os"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/cli"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
	"mgnrega/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting mgnrega-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if !cfg.DataGovEnabled() {
		logger.Error("DATA_GOV_API_KEY is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := cli.SeedIfEmpty(startupCtx, logger, repo, cfg, time.Now()); err != nil {
		logger.Error("Failed to seed database", log.FieldError, err)
		os.Exit(1)
	}
	cancelStartup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncService := services.NewSyncService(repo, cli.NewDataGovClient(cfg, logger), services.SyncConfig{
		Interval:    cfg.SyncInterval,
		Concurrency: cfg.SyncConcurrency,
	}, logger)
	syncWorker := worker.NewSyncWorker(syncService, format.RealScheduler{}, cfg.SyncDebounce, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Shutdown(ctx); err != nil {
			logger.Warn("Pending sync runs did not finish before shutdown", log.FieldError, err)
		}
	})

	if err := syncWorker.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
