package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

type noopMetrics struct{}

func (noopMetrics) RecordRefresh(string, float64)            {}
func (noopMetrics) RecordPipelineError(string)               {}
func (noopMetrics) RecordCacheAge(float64)                   {}
func (noopMetrics) RecordWindow(string, string, bool)        {}
func (noopMetrics) RecordConfidence(string, string, float64) {}
func (noopMetrics) RecordTickerSkipped(string)               {}

type fakeRunner struct {
	mu    sync.Mutex
	runs  int
	delay time.Duration
	err   error
}

func (r *fakeRunner) Run(_ context.Context, _ *models.PredictionBundle) (*models.PredictionBundle, error) {
	r.mu.Lock()
	r.runs++
	n := r.runs
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.PredictionBundle{Forecasts: map[string]*models.TickerForecast{
		"NVDA": {Ticker: "NVDA", Close: float64(n)},
	}}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

type memStore struct {
	mu    sync.Mutex
	entry *models.CacheEntry
	fail  bool
}

func (s *memStore) Save(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.entry = entry
	return nil
}

func (s *memStore) Load(_ context.Context) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry, nil
}

func newTestCache(t *testing.T, runner Runner, store *memStore) *ResultCache {
	t.Helper()
	return NewResultCache(runner, store, nil, testLogger(t), noopMetrics{})
}

func TestGetOrRefreshServesFreshEntryWithoutRunning(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestCache(t, runner, &memStore{})
	ctx := context.Background()

	first, err := c.GetOrRefresh(ctx, DefaultMaxAge)
	require.NoError(t, err)
	require.Equal(t, 1, runner.count())

	for i := 0; i < 5; i++ {
		entry, err := c.GetOrRefresh(ctx, DefaultMaxAge)
		require.NoError(t, err)
		assert.Same(t, first, entry, "fresh reads return the identical entry")
	}
	assert.Equal(t, 1, runner.count())
}

func TestGetOrRefreshStaleTriggersExactlyOneRun(t *testing.T) {
	runner := &fakeRunner{delay: 30 * time.Millisecond}
	c := newTestCache(t, runner, &memStore{})
	ctx := context.Background()

	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var nowMu sync.Mutex
	c.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return current
	}

	_, err := c.GetOrRefresh(ctx, DefaultMaxAge)
	require.NoError(t, err)
	require.Equal(t, 1, runner.count())

	// 30 hours later the entry is stale for a 24h window.
	nowMu.Lock()
	current = current.Add(30 * time.Hour)
	nowMu.Unlock()

	var wg sync.WaitGroup
	entries := make([]*models.CacheEntry, 10)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := c.GetOrRefresh(ctx, DefaultMaxAge)
			assert.NoError(t, err)
			entries[i] = entry
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, runner.count(), "ten stale readers share one refresh")
	for _, entry := range entries {
		require.NotNil(t, entry)
		assert.Equal(t, entries[0].GeneratedAt, entry.GeneratedAt)
	}
}

func TestFailedRunServesStaleEntry(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestCache(t, runner, &memStore{})
	ctx := context.Background()

	good, err := c.Refresh(ctx)
	require.NoError(t, err)

	runner.err = errors.New("every source down")
	entry, err := c.Refresh(ctx)
	require.NoError(t, err, "stale-but-present is a normal operating state")
	assert.Same(t, good, entry)
	assert.Same(t, good, c.Current(), "failed run never replaces the entry")
}

func TestFailedRunWithNoHistoryErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("every source down")}
	c := newTestCache(t, runner, &memStore{})

	_, err := c.GetOrRefresh(context.Background(), DefaultMaxAge)
	assert.Error(t, err)
	assert.Nil(t, c.Current())
}

func TestCacheWriteFailureDiscardsRun(t *testing.T) {
	runner := &fakeRunner{}
	store := &memStore{}
	c := newTestCache(t, runner, store)
	ctx := context.Background()

	good, err := c.Refresh(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	entry, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Same(t, good, entry, "unpersisted result is discarded")
	assert.Same(t, good, c.Current())
	assert.Equal(t, 2, runner.count())
}

func TestRestoreLoadsPersistedEntry(t *testing.T) {
	persisted := &models.CacheEntry{
		GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Bundle: models.PredictionBundle{Forecasts: map[string]*models.TickerForecast{
			"ORCL": {Ticker: "ORCL"},
		}},
	}
	c := newTestCache(t, &fakeRunner{}, &memStore{entry: persisted})

	require.NoError(t, c.Restore(context.Background()))
	require.NotNil(t, c.Current())
	assert.Equal(t, persisted.GeneratedAt, c.Current().GeneratedAt)

	tf, generatedAt, err := c.Forecast("ORCL")
	require.NoError(t, err)
	assert.Equal(t, "ORCL", tf.Ticker)
	assert.Equal(t, persisted.GeneratedAt, generatedAt)
}

func TestForecastNotModeled(t *testing.T) {
	c := newTestCache(t, &fakeRunner{}, &memStore{})

	_, _, err := c.Forecast("NVDA")
	assert.ErrorIs(t, err, models.ErrNotModeled, "empty cache")

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	_, _, err = c.Forecast("ZZZZ")
	assert.ErrorIs(t, err, models.ErrNotModeled, "absent ticker is distinct from HOLD")
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

func TestRefreshAcquiresAndReleasesLock(t *testing.T) {
	runner := &fakeRunner{}
	locker := &fakeLocker{}
	c := newTestCache(t, runner, &memStore{})
	c.UseLock(locker, time.Minute)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)
}

func TestRefreshHeldLockAdoptsStoredEntry(t *testing.T) {
	runner := &fakeRunner{}
	locker := &fakeLocker{held: true}
	stored := &models.CacheEntry{
		GeneratedAt: time.Now(),
		Bundle: models.PredictionBundle{Forecasts: map[string]*models.TickerForecast{
			"ORCL": {Ticker: "ORCL", Close: 150},
		}},
	}
	c := newTestCache(t, runner, &memStore{entry: stored})
	c.UseLock(locker, time.Minute)

	entry, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, runner.count(), "pipeline must not run while another replica holds the lock")
	require.NotNil(t, entry.Bundle.Forecasts["ORCL"])
	assert.Same(t, entry, c.Current())
}

func TestRefreshHeldLockWithNothingStoredErrors(t *testing.T) {
	runner := &fakeRunner{}
	locker := &fakeLocker{held: true}
	c := newTestCache(t, runner, &memStore{})
	c.UseLock(locker, time.Minute)

	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, runner.count())
}

func TestRefreshHeldLockServesPriorEntry(t *testing.T) {
	runner := &fakeRunner{}
	locker := &fakeLocker{}
	c := newTestCache(t, runner, &memStore{})
	c.UseLock(locker, time.Minute)
	ctx := context.Background()

	first, err := c.Refresh(ctx)
	require.NoError(t, err)

	locker.held = true
	entry, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Same(t, first, entry)
	assert.Equal(t, 1, runner.count())
}
