package api

import (
	"context"
	"errors"
	"time"

	models "EquiCast/internal/domain/models"
	domrepo "EquiCast/internal/domain/repository"
	"EquiCast/internal/usecase"
	xhttp "EquiCast/pkg/http"
	xlogger "EquiCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler serves the cached forecast bundle over HTTP. Reads never
// trigger a pipeline run; only the refresh endpoint does.
type ForecastHandler struct {
	logger  *xlogger.Logger
	cache   *usecase.ResultCache
	bars    domrepo.BarRepository
	tickers []string
	maxAge  time.Duration
}

func NewForecastHandler(logger *xlogger.Logger, cache *usecase.ResultCache, bars domrepo.BarRepository, tickers []string, maxAge time.Duration) *ForecastHandler {
	if maxAge <= 0 {
		maxAge = usecase.DefaultMaxAge
	}
	return &ForecastHandler{logger: logger, cache: cache, bars: bars, tickers: tickers, maxAge: maxAge}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/tickers", h.Tickers)
	g.GET("/predictions", h.Predictions)
	g.GET("/backtest", h.Backtest)
	g.POST("/refresh", h.Refresh)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{"clickhouse": "ok"}
	status := "ok"
	if err := h.bars.Health(ctx); err != nil {
		deps["clickhouse"] = err.Error()
		status = "degraded"
	}

	res := &models.HealthResponse{Status: status, Dependencies: deps}
	if entry := h.cache.Current(); entry != nil {
		res.GeneratedAt = entry.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Tickers(c echo.Context) error {
	return xhttp.SuccessResponse(c, &models.TickersResponse{Tickers: h.tickers})
}

func (h *ForecastHandler) Predictions(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tf, generatedAt, err := h.cache.Forecast(req.Ticker)
	if err != nil {
		if errors.Is(err, models.ErrNotModeled) {
			return xhttp.NotFoundResponse(c, "ticker not yet modeled")
		}
		h.logger.Error("predictions lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.PredictionsResponse{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Forecast:    tf,
	})
}

func (h *ForecastHandler) Backtest(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tf, generatedAt, err := h.cache.Forecast(req.Ticker)
	if err != nil {
		if errors.Is(err, models.ErrNotModeled) {
			return xhttp.NotFoundResponse(c, "ticker not yet modeled")
		}
		h.logger.Error("backtest lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.BacktestResponse{
		Ticker:      tf.Ticker,
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Backtests:   tf.Backtests,
	})
}

func (h *ForecastHandler) Refresh(c echo.Context) error {
	entry, err := h.cache.Refresh(c.Request().Context())
	if err != nil {
		h.logger.Error("forced refresh failed", xlogger.Error(err))
		if errors.Is(err, models.ErrDataUnavailable) || errors.Is(err, models.ErrRateLimited) {
			return xhttp.AppErrorResponse(c,
				xhttp.UpstreamUnavailableError("market data providers unavailable").WithError(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.RefreshResponse{
		GeneratedAt: entry.GeneratedAt.UTC().Format(time.RFC3339),
		Tickers:     len(entry.Bundle.Forecasts),
	})
}
