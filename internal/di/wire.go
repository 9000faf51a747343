//go:build wireinject
// +build wireinject

package di

import (
	"EquiCast/pkg/config"
	"EquiCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideRateLimiter,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories and data sources
		ProvideBarRepository,
		ProvideMarketDataSource,
		ProvideMacroDataSource,
		ProvideSeriesStore,
		ProvideBundleStore,
		ProvideForecastPublisher,

		// Use cases
		ProvideFeatureBuilder,
		ProvideHorizons,
		ProvidePipeline,
		ProvideResultCache,

		// Presentation
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
