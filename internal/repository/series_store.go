package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	"EquiCast/pkg/logger"
	"EquiCast/pkg/util"
)

// SeriesStoreConfig names the companion symbols and the history window every
// bundle is built over.
type SeriesStoreConfig struct {
	MarketSymbol string            // e.g. ^GSPC
	VolSymbol    string            // e.g. ^VIX
	MacroSeries  map[string]string // display name -> provider series id
	HistoryDays  int
}

// CompositeSeriesStore assembles SeriesBundles from the market and macro
// sources, reading equity bars through the ClickHouse bar repository.
type CompositeSeriesStore struct {
	market repository.MarketDataSource
	macro  repository.MacroDataSource
	bars   repository.BarRepository
	cfg    SeriesStoreConfig
	log    *logger.Logger
}

// NewCompositeSeriesStore creates the bundle assembler.
func NewCompositeSeriesStore(
	market repository.MarketDataSource,
	macro repository.MacroDataSource,
	bars repository.BarRepository,
	cfg SeriesStoreConfig,
	log *logger.Logger,
) repository.SeriesStore {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 730
	}
	return &CompositeSeriesStore{market: market, macro: macro, bars: bars, cfg: cfg, log: log}
}

// Bundle builds the full aligned input bundle for ticker. Companion series
// (market index, vol index) are forward-filled onto the equity's trading
// calendar; macro series keep their native publication dates.
func (s *CompositeSeriesStore) Bundle(ctx context.Context, ticker string) (*models.SeriesBundle, error) {
	to := util.Day(time.Now())
	from := to.AddDate(0, 0, -s.cfg.HistoryDays)

	prices, err := s.closes(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	marketRaw, err := s.closes(ctx, s.cfg.MarketSymbol, from, to)
	if err != nil {
		return nil, err
	}
	volRaw, err := s.closes(ctx, s.cfg.VolSymbol, from, to)
	if err != nil {
		return nil, err
	}

	// Companion series must share the equity calendar so index lookups stay
	// positional.
	market, err := alignToCalendar(marketRaw, prices.Dates)
	if err != nil {
		return nil, fmt.Errorf("align %s to %s calendar: %w", s.cfg.MarketSymbol, ticker, err)
	}
	vol, err := alignToCalendar(volRaw, prices.Dates)
	if err != nil {
		return nil, fmt.Errorf("align %s to %s calendar: %w", s.cfg.VolSymbol, ticker, err)
	}

	macro := make(map[string]models.AlignedSeries, len(s.cfg.MacroSeries))
	for name, seriesID := range s.cfg.MacroSeries {
		obs, err := s.macro.Observations(ctx, seriesID, from, to)
		if err != nil {
			// Macro gaps degrade the vector, they do not block the bundle.
			if errors.Is(err, models.ErrDataUnavailable) {
				s.log.Warn("macro series unavailable",
					logger.String("series", seriesID),
					logger.Error(err))
				continue
			}
			return nil, err
		}
		obs.Name = name
		macro[name] = obs
	}

	return &models.SeriesBundle{
		Ticker: ticker,
		Prices: prices,
		Market: market,
		Vol:    vol,
		Macro:  macro,
	}, nil
}

// closes fetches daily closes for symbol, persisting fresh bars and falling
// back to the repository when the upstream source fails.
func (s *CompositeSeriesStore) closes(ctx context.Context, symbol string, from, to time.Time) (models.AlignedSeries, error) {
	bars, err := s.market.DailyBars(ctx, symbol, from, to)
	switch {
	case err == nil:
		if serr := s.bars.StoreBatch(ctx, bars); serr != nil {
			s.log.Warn("bar persistence failed",
				logger.String("symbol", symbol),
				logger.Error(serr))
		}
	case errors.Is(err, models.ErrDataUnavailable) || errors.Is(err, models.ErrRateLimited):
		s.log.Warn("falling back to stored bars",
			logger.String("symbol", symbol),
			logger.Error(err))
		bars, err = s.bars.Load(ctx, symbol, from, to)
		if err != nil {
			return models.AlignedSeries{}, fmt.Errorf("load stored bars %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return models.AlignedSeries{}, fmt.Errorf("%s: %w", symbol, models.ErrDataUnavailable)
		}
	default:
		return models.AlignedSeries{}, err
	}

	dates := make([]time.Time, len(bars))
	values := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		values[i] = b.Close
	}
	return models.NewAlignedSeries(symbol, dates, values)
}

// alignToCalendar projects src onto calendar: forward-fill from the most
// recent observation at or before each calendar date, zero before the first
// observation.
func alignToCalendar(src models.AlignedSeries, calendar []time.Time) (models.AlignedSeries, error) {
	values := make([]float64, len(calendar))
	for i, d := range calendar {
		if v, _, ok := src.LastOnOrBefore(d); ok {
			values[i] = v
		}
	}
	dates := make([]time.Time, len(calendar))
	copy(dates, calendar)
	return models.NewAlignedSeries(src.Name, dates, values)
}
