package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/cache"
	"mgnrega/internal/cli"
	"mgnrega/internal/format"
	apphttp "mgnrega/internal/http"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := cli.SeedIfEmpty(startupCtx, logger, repo, cfg, time.Now()); err != nil {
		logger.Error("Failed to seed database", log.FieldError, err)
		os.Exit(1)
	}
	cancelStartup()

	caches := cache.NewManager(logger)

	// Publishing is optional; without a broker POST /api/v1/sync answers 503.
	var publisher apphttp.SyncPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, sync requests disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	dashboard := services.NewDashboardService(repo, format.Default, logger)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		ReportCacheTTL: cfg.CacheTTL,
		Logger:         logger,
		Caches:         caches,
	}, repo, dashboard, publisher)

	var syncService *services.SyncService
	if cfg.DataGovEnabled() {
		client := cli.NewDataGovClient(cfg, logger)
		caches.Register(client.Cache())
		syncService = services.NewSyncService(repo, client, services.SyncConfig{
			Interval:    cfg.SyncInterval,
			Concurrency: cfg.SyncConcurrency,
		}, logger)
		syncService.OnSynced = caches.PurgeAll
	} else {
		logger.Info("Scheduled sync disabled - no DATA_GOV_API_KEY provided")
	}
	caches.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if syncService != nil {
			if err := syncService.Stop(ctx); err != nil {
				logger.Error("Sync scheduler shutdown error", log.FieldError, err)
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if syncService != nil {
		if err := syncService.Start(ctx); err != nil {
			logger.Error("Failed to start sync scheduler", log.FieldError, err)
		}
	}

	logger.Info("Starting mgnrega server", "port", cfg.Port, "version", apphttp.Version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
