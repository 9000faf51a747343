package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	"EquiCast/pkg/logger"
)

// DefaultMaxAge is the freshness window after which a cached entry is stale.
const DefaultMaxAge = 24 * time.Hour

const (
	refreshLockKey = "forecast:refresh:lock"
	defaultLockTTL = 5 * time.Minute
)

// Runner executes one full pipeline run. The prior bundle lets a run carry
// forward forecasts for tickers it had to skip.
type Runner interface {
	Run(ctx context.Context, prior *models.PredictionBundle) (*models.PredictionBundle, error)
}

// Locker serializes refreshes across processes. The Redis-backed bundle
// store provides one; the file store does not.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ResultCache owns the single current CacheEntry. Reads are lock-free;
// refreshes are serialized process-wide so concurrent stale readers trigger
// exactly one pipeline execution and late arrivals wait for, then read, that
// single result. A failed or partially-persisted run never replaces a good
// entry.
type ResultCache struct {
	runner  Runner
	store   repository.BundleStore
	pub     repository.ForecastPublisher
	log     *logger.Logger
	metrics repository.Metrics

	refreshMu sync.Mutex
	current   atomic.Pointer[models.CacheEntry]

	locker  Locker
	lockTTL time.Duration

	now func() time.Time
}

// NewResultCache builds a ResultCache. pub may be nil when no downstream
// publisher is configured.
func NewResultCache(runner Runner, store repository.BundleStore, pub repository.ForecastPublisher, log *logger.Logger, metrics repository.Metrics) *ResultCache {
	return &ResultCache{
		runner:  runner,
		store:   store,
		pub:     pub,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// UseLock enables a cross-process refresh lock so replicas sharing one
// bundle store do not run the pipeline concurrently. ttl bounds how long a
// crashed holder can block others.
func (c *ResultCache) UseLock(l Locker, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	c.locker = l
	c.lockTTL = ttl
}

// Restore loads the persisted entry, if any, so restarts serve the last
// completed run instead of an empty cache.
func (c *ResultCache) Restore(ctx context.Context) error {
	entry, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore cache: %w", err)
	}
	if entry != nil {
		c.current.Store(entry)
		c.log.Info("cache restored",
			logger.String("generated_at", entry.GeneratedAt.Format(time.RFC3339)),
			logger.Int("tickers", len(entry.Bundle.Forecasts)))
	}
	return nil
}

// Current returns the live entry without taking any lock. Nil means no run
// has ever completed.
func (c *ResultCache) Current() *models.CacheEntry {
	return c.current.Load()
}

// GetOrRefresh returns the current entry if its age is within maxAge,
// otherwise runs the pipeline and atomically replaces the entry on full
// success. Readers of a fresh entry never block on a refresh they did not
// trigger.
func (c *ResultCache) GetOrRefresh(ctx context.Context, maxAge time.Duration) (*models.CacheEntry, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if entry := c.current.Load(); c.fresh(entry, maxAge) {
		c.metrics.RecordCacheAge(entry.Age(c.now()).Seconds())
		return entry, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// A concurrent caller may have completed the refresh while we waited on
	// the lock; serve its result instead of running again.
	if entry := c.current.Load(); c.fresh(entry, maxAge) {
		return entry, nil
	}
	return c.refresh(ctx)
}

// Refresh forces a pipeline run regardless of entry age, still under the
// single-flight guard.
func (c *ResultCache) Refresh(ctx context.Context) (*models.CacheEntry, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refresh(ctx)
}

func (c *ResultCache) refresh(ctx context.Context) (*models.CacheEntry, error) {
	start := c.now()
	prev := c.current.Load()

	var prior *models.PredictionBundle
	if prev != nil {
		prior = &prev.Bundle
	}

	if c.locker != nil {
		acquired, lerr := c.locker.TryLock(ctx, refreshLockKey, c.lockTTL)
		switch {
		case lerr != nil:
			// Lock backend down; proceed locally rather than stall.
			c.log.Warn("refresh lock check failed", logger.Error(lerr))
		case !acquired:
			// Another replica is refreshing. Adopt its result if it already
			// landed, otherwise keep serving what we have.
			if entry, serr := c.store.Load(ctx); serr == nil && entry != nil &&
				(prev == nil || entry.GeneratedAt.After(prev.GeneratedAt)) {
				c.current.Store(entry)
				return entry, nil
			}
			if prev != nil {
				return prev, nil
			}
			return nil, fmt.Errorf("refresh already in progress elsewhere")
		default:
			defer func() {
				if uerr := c.locker.Unlock(ctx, refreshLockKey); uerr != nil {
					c.log.Warn("refresh unlock failed", logger.Error(uerr))
				}
			}()
		}
	}

	bundle, err := c.runner.Run(ctx, prior)
	if err != nil {
		c.metrics.RecordRefresh("failed", c.now().Sub(start).Seconds())
		c.log.Error("refresh failed, serving stale entry", logger.Error(err))
		if prev != nil {
			// Stale but present is a normal operating state.
			return prev, nil
		}
		return nil, err
	}

	entry := &models.CacheEntry{GeneratedAt: c.now(), Bundle: *bundle}

	if err := c.store.Save(ctx, entry); err != nil {
		// Discard the run result, keep the old entry, and let the next
		// scheduled attempt retry in full.
		c.metrics.RecordRefresh("write_failed", c.now().Sub(start).Seconds())
		c.metrics.RecordPipelineError("cache_write")
		c.log.Error("cache write failed, run result discarded", logger.Error(err))
		if prev != nil {
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %v", models.ErrCacheWrite, err)
	}

	c.current.Store(entry)
	c.metrics.RecordRefresh("ok", c.now().Sub(start).Seconds())
	c.log.Info("cache refreshed",
		logger.Int("tickers", len(entry.Bundle.Forecasts)),
		logger.Duration("took", c.now().Sub(start)))

	if c.pub != nil {
		if err := c.pub.Publish(ctx, entry); err != nil {
			// Downstream fan-out is best effort; the refresh already
			// succeeded.
			c.log.Warn("forecast publish failed", logger.Error(err))
			c.metrics.RecordPipelineError("publish")
		}
	}

	return entry, nil
}

// Forecast returns the cached forecast for one ticker, unmodified. A missing
// ticker is ErrNotModeled, which is distinct from a modeled HOLD.
func (c *ResultCache) Forecast(ticker string) (*models.TickerForecast, time.Time, error) {
	entry := c.current.Load()
	if entry == nil {
		return nil, time.Time{}, models.ErrNotModeled
	}
	tf, ok := entry.Bundle.Forecasts[ticker]
	if !ok {
		return nil, time.Time{}, models.ErrNotModeled
	}
	return tf, entry.GeneratedAt, nil
}

func (c *ResultCache) fresh(entry *models.CacheEntry, maxAge time.Duration) bool {
	return entry != nil && entry.Age(c.now()) <= maxAge
}
