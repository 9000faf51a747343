package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/features"
	"EquiCast/internal/forecast"
	"EquiCast/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSeriesStore struct {
	bundles map[string]*models.SeriesBundle
	errs    map[string]error
}

func (s *fakeSeriesStore) Bundle(_ context.Context, ticker string) (*models.SeriesBundle, error) {
	if err, ok := s.errs[ticker]; ok {
		return nil, err
	}
	b, ok := s.bundles[ticker]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ticker, models.ErrDataUnavailable)
	}
	return b, nil
}

// regimeBundle builds n daily bars cycling through fall/hold/rise regimes so
// every class appears and the next-day direction is learnable from the
// trailing one-day return.
func regimeBundle(t *testing.T, ticker string, n int) *models.SeriesBundle {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deltas := []float64{-0.01, 0, 0.01}

	dates := make([]time.Time, n)
	closes := make([]float64, n)
	market := make([]float64, n)
	vol := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		dates[i] = base.AddDate(0, 0, i)
		closes[i] = price
		market[i] = 4000 + float64(i)
		vol[i] = 15
		price *= 1 + deltas[i%3]
	}

	prices, err := models.NewAlignedSeries(ticker, dates, closes)
	require.NoError(t, err)
	mkt, err := models.NewAlignedSeries("^GSPC", dates, market)
	require.NoError(t, err)
	vix, err := models.NewAlignedSeries("^VIX", dates, vol)
	require.NoError(t, err)

	return &models.SeriesBundle{
		Ticker: ticker,
		Prices: prices,
		Market: mkt,
		Vol:    vix,
		Macro:  map[string]models.AlignedSeries{},
	}
}

func testPipelineConfig(tickers []string) PipelineConfig {
	return PipelineConfig{
		Tickers: tickers,
		Horizons: []models.Horizon{
			{Name: "tomorrow", Days: 1},
			{Name: "one_year", Days: 250},
		},
		Deadzone:         0.004,
		Threshold:        forecast.DefaultThreshold,
		TrainSize:        60,
		TestSize:         15,
		Step:             15,
		MinClassExamples: 2,
		Workers:          2,
		Model:            ml.Config{Rounds: 15, LearningRate: 0.3, MaxDepth: 2, MinLeaf: 2},
	}
}

func TestPipelineProducesForecasts(t *testing.T) {
	store := &fakeSeriesStore{bundles: map[string]*models.SeriesBundle{
		"NVDA": regimeBundle(t, "NVDA", 240),
	}}
	p := NewPipeline(store, features.NewBuilder(nil), testPipelineConfig([]string{"NVDA"}), testLogger(t), noopMetrics{})

	bundle, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	tf := bundle.Forecasts["NVDA"]
	require.NotNil(t, tf)

	hf, ok := tf.Horizons["tomorrow"]
	require.True(t, ok)
	assert.True(t, hf.Probs.Valid(forecast.ProbTolerance))
	assert.Equal(t, forecast.Recommend(hf.Probs, forecast.DefaultThreshold).Action, hf.Action)

	report, ok := tf.Backtests["tomorrow"]
	require.True(t, ok)
	assert.Greater(t, report.WindowsUsed, 0)

	// 250 trading days exceed the available history; reported unavailable,
	// never fabricated.
	assert.Contains(t, tf.Unavailable, "one_year")
	_, ok = tf.Horizons["one_year"]
	assert.False(t, ok)
}

func TestPipelineSkippedTickerCarriesPriorForecast(t *testing.T) {
	store := &fakeSeriesStore{
		bundles: map[string]*models.SeriesBundle{"NVDA": regimeBundle(t, "NVDA", 240)},
		errs:    map[string]error{"ORCL": fmt.Errorf("candles: %w", models.ErrRateLimited)},
	}
	p := NewPipeline(store, features.NewBuilder(nil), testPipelineConfig([]string{"NVDA", "ORCL"}), testLogger(t), noopMetrics{})

	prior := &models.PredictionBundle{Forecasts: map[string]*models.TickerForecast{
		"ORCL": {Ticker: "ORCL", Close: 123.45},
	}}

	bundle, err := p.Run(context.Background(), prior)
	require.NoError(t, err)
	require.NotNil(t, bundle.Forecasts["NVDA"])

	carried := bundle.Forecasts["ORCL"]
	require.NotNil(t, carried, "skipped ticker keeps its prior forecast")
	assert.Equal(t, 123.45, carried.Close)
}

func TestPipelineSkippedTickerWithoutPriorIsAbsent(t *testing.T) {
	store := &fakeSeriesStore{
		bundles: map[string]*models.SeriesBundle{"NVDA": regimeBundle(t, "NVDA", 240)},
		errs:    map[string]error{"ORCL": models.ErrDataUnavailable},
	}
	p := NewPipeline(store, features.NewBuilder(nil), testPipelineConfig([]string{"NVDA", "ORCL"}), testLogger(t), noopMetrics{})

	bundle, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	_, ok := bundle.Forecasts["ORCL"]
	assert.False(t, ok, "absence means not yet modeled, not HOLD")
}

func TestPipelineErrorsWhenNothingProduced(t *testing.T) {
	store := &fakeSeriesStore{errs: map[string]error{
		"NVDA": models.ErrDataUnavailable,
		"ORCL": models.ErrDataUnavailable,
	}}
	p := NewPipeline(store, features.NewBuilder(nil), testPipelineConfig([]string{"NVDA", "ORCL"}), testLogger(t), noopMetrics{})

	_, err := p.Run(context.Background(), nil)
	assert.Error(t, err)
}
