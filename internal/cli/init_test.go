package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgnrega/internal/config"
	"mgnrega/internal/log"
	"mgnrega/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestSeedIfEmpty(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	cfg := &config.Config{SeedOnStartup: true}
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ran, err := SeedIfEmpty(ctx, quietLogger(), repo, cfg, now)
	require.NoError(t, err)
	assert.True(t, ran)

	n, err := repo.CountStates(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	states, err := repo.ListStates(ctx, 0, 1)
	require.NoError(t, err)
	districts, err := repo.ListDistricts(ctx, states[0].ID, 0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, districts)

	latest, err := repo.LatestMetric(ctx, districts[0].ID, storage.MetricFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2025, latest.Period.Year)
	assert.Equal(t, 2, latest.Period.Month)

	ran, err = SeedIfEmpty(ctx, quietLogger(), repo, cfg, now)
	require.NoError(t, err)
	assert.False(t, ran, "populated database must not be reseeded")
}

func TestSeedIfEmptyDisabled(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "off.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ran, err := SeedIfEmpty(context.Background(), quietLogger(), repo, &config.Config{}, time.Now())
	require.NoError(t, err)
	assert.False(t, ran)

	n, err := repo.CountStates(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	ds, err := LoadDataset("")
	require.NoError(t, err)
	assert.NotEmpty(t, ds.States)
}
