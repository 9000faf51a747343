package repository

import (
	"context"
	"time"

	"EquiCast/internal/domain/models"
)

// MarketDataSource supplies daily bars for an equity or index symbol.
// Implementations surface models.ErrDataUnavailable / models.ErrRateLimited
// so the pipeline can skip the ticker for the cycle instead of failing it.
type MarketDataSource interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// MacroDataSource supplies a macroeconomic indicator series by its
// provider id, ordered by observation date.
type MacroDataSource interface {
	Observations(ctx context.Context, seriesID string, from, to time.Time) (models.AlignedSeries, error)
}

// SeriesStore assembles the full aligned input bundle for one ticker.
type SeriesStore interface {
	Bundle(ctx context.Context, ticker string) (*models.SeriesBundle, error)
}

// BarRepository persists raw daily bars.
type BarRepository interface {
	StoreBatch(ctx context.Context, bars []models.Bar) error
	Load(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
}

// BundleStore persists the result document read by the presentation layer.
type BundleStore interface {
	Save(ctx context.Context, entry *models.CacheEntry) error
	Load(ctx context.Context) (*models.CacheEntry, error)
}

// ForecastPublisher emits a completed result bundle to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, entry *models.CacheEntry) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordRefresh(outcome string, seconds float64)
	RecordPipelineError(kind string)
	RecordCacheAge(seconds float64)
	RecordWindow(ticker, horizon string, skipped bool)
	RecordConfidence(ticker, horizon string, confidence float64)
	RecordTickerSkipped(ticker string)
}
