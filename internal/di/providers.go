package di

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	"EquiCast/internal/features"
	"EquiCast/internal/handler/api"
	internalrepo "EquiCast/internal/repository"
	"EquiCast/internal/service/finnhub"
	"EquiCast/internal/service/fred"
	"EquiCast/internal/service/ratelimit"
	"EquiCast/internal/usecase"
	"EquiCast/pkg/cache"
	pkgch "EquiCast/pkg/clickhouse"
	"EquiCast/pkg/config"
	xhttp "EquiCast/pkg/http"
	pkgkafka "EquiCast/pkg/kafka"
	applogger "EquiCast/pkg/logger"
	"EquiCast/pkg/metrics"
	"EquiCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(barTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func barTable(cfg *config.Config) string {
	if cfg.ClickHouse.Table != "" {
		return cfg.ClickHouse.Table
	}
	return "equicast.daily_bars"
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRateLimiter creates the shared outbound request limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideBarRepository creates the ClickHouse bar repository.
func ProvideBarRepository(chClient *pkgch.Client, cfg *config.Config) repository.BarRepository {
	return internalrepo.NewClickHouseBarRepository(chClient.DB(), barTable(cfg))
}

// ProvideMarketDataSource creates the daily-candle REST client.
func ProvideMarketDataSource(cfg *config.Config, limiter *ratelimit.Limiter) repository.MarketDataSource {
	return finnhub.New(cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL, cfg.Finnhub.Timeout, limiter)
}

// ProvideMacroDataSource creates the FRED observations client.
func ProvideMacroDataSource(cfg *config.Config, limiter *ratelimit.Limiter) repository.MacroDataSource {
	return fred.New(cfg.FRED.APIKey, cfg.FRED.BaseURL, cfg.FRED.Timeout, limiter)
}

// ProvideSeriesStore creates the composite series store.
func ProvideSeriesStore(
	market repository.MarketDataSource,
	macro repository.MacroDataSource,
	bars repository.BarRepository,
	cfg *config.Config,
	log *applogger.Logger,
) repository.SeriesStore {
	return internalrepo.NewCompositeSeriesStore(market, macro, bars, internalrepo.SeriesStoreConfig{
		MarketSymbol: cfg.Forecast.MarketSymbol,
		VolSymbol:    cfg.Forecast.VolSymbol,
		MacroSeries:  cfg.FRED.Series,
		HistoryDays:  cfg.Forecast.HistoryDays,
	}, log)
}

// ProvideFeatureBuilder creates the feature builder. Macro specs are ordered
// by name so the schema stays identical across runs.
func ProvideFeatureBuilder(cfg *config.Config) *features.Builder {
	names := make([]string, 0, len(cfg.FRED.Series))
	for name := range cfg.FRED.Series {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]features.MacroSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, features.MacroSpec{
			Name: name,
			YoY:  strings.Contains(strings.ToLower(name), "inflation"),
		})
	}
	return features.NewBuilder(specs)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideForecastPublisher creates the Kafka forecast publisher, or nil when
// Kafka is disabled.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ForecastPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBundleStore creates the persistent bundle store. Redis wins when
// enabled; otherwise forecast.cache_backend picks a local JSON file or an
// in-process cache for development runs.
func ProvideBundleStore(cfg *config.Config) (repository.BundleStore, error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return internalrepo.NewCacheBundleStore(rc), nil
	}
	if cfg.Forecast.CacheBackend == "memory" {
		return internalrepo.NewCacheBundleStore(cache.NewMemoryCache()), nil
	}
	return internalrepo.NewFileBundleStore(cfg.Forecast.CachePath), nil
}

// ProvideHorizons converts the configured horizon map into an ordered slice.
func ProvideHorizons(cfg *config.Config) []models.Horizon {
	horizons := make([]models.Horizon, 0, len(cfg.Forecast.Horizons))
	for name, days := range cfg.Forecast.Horizons {
		horizons = append(horizons, models.Horizon{Name: name, Days: days})
	}
	sort.Slice(horizons, func(i, j int) bool { return horizons[i].Days < horizons[j].Days })
	return horizons
}

// ProvidePipeline creates the forecasting pipeline.
func ProvidePipeline(
	store repository.SeriesStore,
	builder *features.Builder,
	horizons []models.Horizon,
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.Pipeline {
	return usecase.NewPipeline(store, builder, usecase.PipelineConfig{
		Tickers:          cfg.Forecast.Tickers,
		Horizons:         horizons,
		Deadzone:         cfg.Forecast.Deadzone,
		Threshold:        cfg.Forecast.Threshold,
		TrainSize:        cfg.Forecast.TrainWindow,
		TestSize:         cfg.Forecast.TestWindow,
		Step:             cfg.Forecast.Step,
		MinClassExamples: *cfg.Forecast.MinClassExamples,
		Workers:          cfg.Forecast.Workers,
	}, log, m)
}

// ProvideResultCache creates the single-flight result cache.
func ProvideResultCache(
	pipeline *usecase.Pipeline,
	store repository.BundleStore,
	pub repository.ForecastPublisher,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.ResultCache {
	rc := usecase.NewResultCache(pipeline, store, pub, log, m)
	if locker, ok := store.(usecase.Locker); ok {
		rc.UseLock(locker, 0)
	}
	return rc
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	log *applogger.Logger,
	rc *usecase.ResultCache,
	bars repository.BarRepository,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewForecastHandler(log, rc, bars, cfg.Forecast.Tickers, cfg.Forecast.CacheMaxAge)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	rc *usecase.ResultCache,
	pub repository.ForecastPublisher,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, rc, pub, chClient, handler)
}
