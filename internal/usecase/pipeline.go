package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	"EquiCast/internal/features"
	"EquiCast/internal/forecast"
	"EquiCast/internal/ml"
	"EquiCast/pkg/logger"
)

// PipelineConfig drives one full forecasting run.
type PipelineConfig struct {
	Tickers   []string
	Horizons  []models.Horizon
	Deadzone  float64
	Threshold float64
	TrainSize int
	TestSize  int
	Step      int
	// MinClassExamples is the per-class floor a training window must meet
	// before it is fit. Zero disables the floor.
	MinClassExamples int
	Workers          int
	Model            ml.Config
}

// Pipeline executes the full forecasting chain for every tracked ticker:
// series assembly, feature construction, walk-forward training, prediction,
// recommendation. Tickers are independent and run on a bounded worker pool;
// each (ticker, horizon) walk stays sequential because its reporting is
// ordered by calendar.
type Pipeline struct {
	store   repository.SeriesStore
	builder *features.Builder
	cfg     PipelineConfig
	log     *logger.Logger
	metrics repository.Metrics
}

// NewPipeline builds a Pipeline over the given series store.
func NewPipeline(store repository.SeriesStore, builder *features.Builder, cfg PipelineConfig, log *logger.Logger, metrics repository.Metrics) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = forecast.DefaultThreshold
	}
	return &Pipeline{store: store, builder: builder, cfg: cfg, log: log, metrics: metrics}
}

// Run produces a fresh PredictionBundle. A ticker whose data source fails is
// skipped for this cycle: its prior forecast (if any) is carried forward so
// one bad source never truncates the published bundle. Run only errors out
// when nothing at all could be produced.
func (p *Pipeline) Run(ctx context.Context, prior *models.PredictionBundle) (*models.PredictionBundle, error) {
	bundle := &models.PredictionBundle{Forecasts: make(map[string]*models.TickerForecast, len(p.cfg.Tickers))}

	type result struct {
		ticker   string
		forecast *models.TickerForecast
		err      error
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)
	results := make(chan result, len(p.cfg.Tickers))

	for _, ticker := range p.cfg.Tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			tf, err := p.runTicker(ctx, ticker, prior)
			results <- result{ticker: ticker, forecast: tf, err: err}
		}(ticker)
	}
	wg.Wait()
	close(results)

	var produced int
	var lastErr error
	for r := range results {
		if r.err != nil {
			lastErr = r.err
			p.metrics.RecordTickerSkipped(r.ticker)
			if errors.Is(r.err, models.ErrDataUnavailable) || errors.Is(r.err, models.ErrRateLimited) {
				p.log.Warn("ticker skipped for cycle", logger.String("ticker", r.ticker), logger.Error(r.err))
			} else {
				p.log.Error("ticker failed", logger.String("ticker", r.ticker), logger.Error(r.err))
				p.metrics.RecordPipelineError("ticker_failed")
			}
			if prev := priorForecast(prior, r.ticker); prev != nil {
				bundle.Forecasts[r.ticker] = prev
			}
			continue
		}
		bundle.Forecasts[r.ticker] = r.forecast
		produced++
	}

	if produced == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("pipeline: no ticker produced a forecast: %w", lastErr)
		}
		return nil, fmt.Errorf("pipeline: no ticker produced a forecast")
	}
	return bundle, nil
}

func (p *Pipeline) runTicker(ctx context.Context, ticker string, prior *models.PredictionBundle) (*models.TickerForecast, error) {
	series, err := p.store.Bundle(ctx, ticker)
	if err != nil {
		return nil, err
	}

	vectors := make([]models.FeatureVector, series.Prices.Len())
	for i, date := range series.Prices.Dates {
		vec, err := p.builder.Vector(series, date)
		if err != nil {
			return nil, fmt.Errorf("features %s: %w", ticker, err)
		}
		vectors[i] = vec
	}
	latest := vectors[len(vectors)-1]

	tf := &models.TickerForecast{
		Ticker:    ticker,
		Date:      series.Prices.Dates[series.Prices.Len()-1],
		Close:     series.Prices.Values[series.Prices.Len()-1],
		Horizons:  make(map[string]models.HorizonForecast, len(p.cfg.Horizons)),
		Backtests: make(map[string]models.BacktestReport, len(p.cfg.Horizons)),
	}

	walkCfg := forecast.WalkConfig{
		TrainSize:        p.cfg.TrainSize,
		TestSize:         p.cfg.TestSize,
		Step:             p.cfg.Step,
		Deadzone:         p.cfg.Deadzone,
		MinClassExamples: p.cfg.MinClassExamples,
		Model:            p.cfg.Model,
	}

	var predictor forecast.Predictor
	for _, horizon := range p.cfg.Horizons {
		walk, err := forecast.WalkForward(ticker, horizon, vectors, series.Prices, walkCfg)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientHistory) {
				p.log.Warn("horizon unavailable",
					logger.String("ticker", ticker), logger.String("horizon", horizon.Name), logger.Error(err))
				tf.Unavailable = append(tf.Unavailable, horizon.Name)
				continue
			}
			return nil, err
		}
		p.recordWindows(ticker, horizon.Name, walk.Report)
		tf.Backtests[horizon.Name] = walk.Report

		probs, err := predictor.Predict(walk.Artifact, latest)
		if err != nil {
			if errors.Is(err, models.ErrNormalization) {
				// Aborted for this (ticker, horizon); the prior value, when
				// one exists, keeps serving.
				p.log.Error("normalization failure",
					logger.String("ticker", ticker), logger.String("horizon", horizon.Name), logger.Error(err))
				p.metrics.RecordPipelineError("normalization")
				if prev, ok := priorHorizon(prior, ticker, horizon.Name); ok {
					tf.Horizons[horizon.Name] = prev
				} else {
					tf.Unavailable = append(tf.Unavailable, horizon.Name)
				}
				continue
			}
			tf.Unavailable = append(tf.Unavailable, horizon.Name)
			continue
		}

		rec := forecast.Recommend(probs, p.cfg.Threshold)
		if rec.Inconsistent {
			p.log.Error("inconsistent probability triple",
				logger.String("ticker", ticker), logger.String("horizon", horizon.Name),
				logger.Any("probs", probs))
			p.metrics.RecordPipelineError("inconsistent_probs")
		}
		p.metrics.RecordConfidence(ticker, horizon.Name, rec.Confidence)
		tf.Horizons[horizon.Name] = models.HorizonForecast{
			Probs:      probs,
			Action:     rec.Action,
			Confidence: rec.Confidence,
		}
	}

	return tf, nil
}

func (p *Pipeline) recordWindows(ticker, horizon string, report models.BacktestReport) {
	for _, w := range report.Windows {
		p.metrics.RecordWindow(ticker, horizon, w.Skipped)
	}
}

func priorForecast(prior *models.PredictionBundle, ticker string) *models.TickerForecast {
	if prior == nil {
		return nil
	}
	return prior.Forecasts[ticker]
}

func priorHorizon(prior *models.PredictionBundle, ticker, horizon string) (models.HorizonForecast, bool) {
	prev := priorForecast(prior, ticker)
	if prev == nil {
		return models.HorizonForecast{}, false
	}
	hf, ok := prev.Horizons[horizon]
	return hf, ok
}

var _ Runner = (*Pipeline)(nil)
