// Package cli provides common initialization utilities shared by
// cmd/mgnrega, cmd/mgnrega-worker and cmd/mgnrega-cli.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mgnrega/internal/config"
	"mgnrega/internal/core"
	"mgnrega/internal/datagov"
	"mgnrega/internal/log"
	"mgnrega/internal/seed"
	"mgnrega/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from configuration and installs it
// as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	slog.SetDefault(logger.Logger)
	return logger
}

// LoadAndValidateConfig loads configuration and a logger for it.
// Exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewDataGovClient builds the data.gov.in client from configuration.
func NewDataGovClient(cfg *config.Config, logger *log.Logger) *datagov.Client {
	return datagov.NewClient(datagov.Config{
		BaseURL:    cfg.DataGovBaseURL,
		ResourceID: cfg.DataGovResourceID,
		APIKey:     cfg.DataGovAPIKey,
		CacheTTL:   cfg.CacheTTL,
	}, logger)
}

// SeedStore is what seeding on startup needs from the repository.
type SeedStore interface {
	seed.Store
	CountStates(ctx context.Context) (int64, error)
}

// LoadDataset returns the seed file when one is configured, else the
// bundled dataset.
func LoadDataset(path string) (seed.Dataset, error) {
	if path != "" {
		return seed.LoadFile(path)
	}
	return seed.Bundled()
}

// SeedIfEmpty seeds an empty database. It reports whether seeding ran.
func SeedIfEmpty(ctx context.Context, logger *log.Logger, store SeedStore, cfg *config.Config, now time.Time) (bool, error) {
	if !cfg.SeedOnStartup {
		return false, nil
	}
	n, err := store.CountStates(ctx)
	if err != nil {
		return false, fmt.Errorf("count states: %w", err)
	}
	if n > 0 {
		logger.DebugContext(ctx, "Database already populated, skipping seed", "states", n)
		return false, nil
	}

	ds, err := LoadDataset(cfg.SeedFile)
	if err != nil {
		return false, err
	}
	// Published figures lag a month behind.
	latest := core.PeriodOf(now).Prev()
	sum, err := seed.New(store, logger).Run(ctx, ds, latest, seed.DefaultMonths)
	if err != nil {
		return false, err
	}
	logger.InfoContext(ctx, "Seeded empty database",
		log.FieldOperation, log.OpSeed, "states", sum.States, "districts", sum.Districts, "metrics", sum.Metrics)
	return true, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
