package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *models.CacheEntry {
	return &models.CacheEntry{
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Bundle: models.PredictionBundle{
			Forecasts: map[string]*models.TickerForecast{
				"NVDA": {
					Ticker: "NVDA",
					Close:  880.25,
					Horizons: map[string]models.HorizonForecast{
						"tomorrow": {
							Probs:      models.ProbTriple{Down: 0.2, Flat: 0.3, Up: 0.5},
							Action:     models.ActionHold,
							Confidence: 0.5,
						},
					},
				},
			},
		},
	}
}

func TestFileBundleStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	store := NewFileBundleStore(path)
	ctx := context.Background()

	entry := sampleEntry()
	require.NoError(t, store.Save(ctx, entry))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.True(t, loaded.GeneratedAt.Equal(entry.GeneratedAt))
	tf := loaded.Bundle.Forecasts["NVDA"]
	require.NotNil(t, tf)
	assert.Equal(t, 880.25, tf.Close)
	assert.Equal(t, models.ActionHold, tf.Horizons["tomorrow"].Action)

	// the temp file must not survive a completed save
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileBundleStoreMissingFile(t *testing.T) {
	store := NewFileBundleStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileBundleStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileBundleStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileBundleStoreSaveUnwritablePath(t *testing.T) {
	store := NewFileBundleStore(filepath.Join(t.TempDir(), "no", "such", "dir", "results.json"))

	err := store.Save(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCacheWrite)
}

// failingCache rejects every write, standing in for a cache backend that
// lost its connection mid-run.
type failingCache struct {
	cache.Service
}

func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func TestCacheBundleStoreRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheBundleStore(mc)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleEntry()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "NVDA", loaded.Bundle.Forecasts["NVDA"].Ticker)
}

func TestCacheBundleStoreMiss(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheBundleStore(mc)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheBundleStoreWriteFailure(t *testing.T) {
	store := NewCacheBundleStore(failingCache{})

	err := store.Save(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCacheWrite)
}

func TestCacheBundleStoreLockCycle(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheBundleStore(mc).(*CacheBundleStore)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "refresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "refresh", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Unlock(ctx, "refresh"))
}
