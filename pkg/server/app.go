package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EquiCast/internal/domain/repository"
	"EquiCast/internal/usecase"
	pkgch "EquiCast/pkg/clickhouse"
	"EquiCast/pkg/config"
	xhttp "EquiCast/pkg/http"
	applogger "EquiCast/pkg/logger"
)

// App encapsulates the entire application lifecycle: HTTP server, refresh
// scheduler, and infrastructure clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	cache      *usecase.ResultCache
	publisher  repository.ForecastPublisher
	chClient   *pkgch.Client
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	cache *usecase.ResultCache,
	publisher repository.ForecastPublisher,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		cache:     cache,
		publisher: publisher,
		chClient:  chClient,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)

	if err := a.cache.Restore(ctx); err != nil {
		a.log.Warn("cache restore failed", applogger.Error(err))
	}

	go a.refreshLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("forecast service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("tickers", a.cfg.Forecast.Tickers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// refreshLoop triggers an initial refresh and then keeps the bundle fresh on
// the configured interval. A failed cycle is logged and retried next tick;
// the previous bundle keeps being served.
func (a *App) refreshLoop(ctx context.Context) {
	maxAge := a.cfg.Forecast.CacheMaxAge

	refresh := func() {
		start := time.Now()
		if _, err := a.cache.GetOrRefresh(ctx, maxAge); err != nil {
			a.log.Error("scheduled refresh failed", applogger.Error(err))
			return
		}
		a.log.Info("bundle fresh", applogger.Duration("elapsed", time.Since(start)))
	}

	refresh()

	ticker := time.NewTicker(a.cfg.Forecast.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
