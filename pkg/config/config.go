package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			BatchTimeout time.Duration `yaml:"batch_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Finnhub struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"finnhub"`
	FRED struct {
		APIKey  string            `yaml:"api_key"`
		BaseURL string            `yaml:"base_url"`
		Timeout time.Duration     `yaml:"timeout"`
		Series  map[string]string `yaml:"series"`
	} `yaml:"fred"`
	Forecast struct {
		Tickers      []string       `yaml:"tickers"`
		MarketSymbol string         `yaml:"market_symbol"`
		VolSymbol    string         `yaml:"vol_symbol"`
		Horizons     map[string]int `yaml:"horizons"`
		Deadzone     float64        `yaml:"deadzone"`
		Threshold    float64        `yaml:"threshold"`
		TrainWindow  int            `yaml:"train_window"`
		TestWindow   int            `yaml:"test_window"`
		Step         int            `yaml:"step"`
		// MinClassExamples is a pointer so an explicit 0 (disable the
		// per-class training floor) survives defaulting.
		MinClassExamples *int          `yaml:"min_class_examples"`
		CacheBackend     string        `yaml:"cache_backend"`
		HistoryDays      int           `yaml:"history_days"`
		Workers          int           `yaml:"workers"`
		CacheMaxAge      time.Duration `yaml:"cache_max_age"`
		RefreshInterval  time.Duration `yaml:"refresh_interval"`
		CachePath        string        `yaml:"cache_path"`
	} `yaml:"forecast"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Forecast.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Finnhub.Timeout == 0 {
		c.Finnhub.Timeout = 30 * time.Second
	}
	if c.FRED.Timeout == 0 {
		c.FRED.Timeout = 30 * time.Second
	}
	if c.Forecast.MarketSymbol == "" {
		c.Forecast.MarketSymbol = "^GSPC"
	}
	if c.Forecast.VolSymbol == "" {
		c.Forecast.VolSymbol = "^VIX"
	}
	if len(c.Forecast.Horizons) == 0 {
		c.Forecast.Horizons = map[string]int{"tomorrow": 1, "one_week": 5, "one_month": 20}
	}
	if c.Forecast.Deadzone == 0 {
		c.Forecast.Deadzone = 0.004
	}
	if c.Forecast.Threshold == 0 {
		c.Forecast.Threshold = 0.6
	}
	if c.Forecast.TrainWindow == 0 {
		c.Forecast.TrainWindow = 120
	}
	if c.Forecast.TestWindow == 0 {
		c.Forecast.TestWindow = 20
	}
	if c.Forecast.Step == 0 {
		c.Forecast.Step = c.Forecast.TestWindow
	}
	if c.Forecast.MinClassExamples == nil {
		floor := 2
		c.Forecast.MinClassExamples = &floor
	}
	if c.Forecast.CacheBackend == "" {
		c.Forecast.CacheBackend = "file"
	}
	if c.Forecast.HistoryDays == 0 {
		c.Forecast.HistoryDays = 730
	}
	if c.Forecast.Workers == 0 {
		c.Forecast.Workers = 4
	}
	if c.Forecast.CacheMaxAge == 0 {
		c.Forecast.CacheMaxAge = 24 * time.Hour
	}
	if c.Forecast.RefreshInterval == 0 {
		c.Forecast.RefreshInterval = 24 * time.Hour
	}
	if c.Forecast.CachePath == "" {
		c.Forecast.CachePath = "cached_results.json"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Forecast.Tickers) == 0 {
		return fmt.Errorf("forecast.tickers cannot be empty")
	}
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.Forecast.Deadzone < 0 {
		return fmt.Errorf("forecast.deadzone must be non-negative")
	}
	if c.Forecast.Threshold <= 0 || c.Forecast.Threshold > 1 {
		return fmt.Errorf("forecast.threshold must be in (0, 1]")
	}
	if c.Forecast.TrainWindow <= c.Forecast.TestWindow {
		return fmt.Errorf("forecast.train_window must exceed test_window")
	}
	if c.Forecast.MinClassExamples != nil && *c.Forecast.MinClassExamples < 0 {
		return fmt.Errorf("forecast.min_class_examples must be non-negative")
	}
	if b := c.Forecast.CacheBackend; b != "file" && b != "memory" {
		return fmt.Errorf("forecast.cache_backend must be file or memory, got %q", b)
	}
	for name, days := range c.Forecast.Horizons {
		if days <= 0 {
			return fmt.Errorf("forecast.horizons.%s must be positive", name)
		}
	}
	return nil
}
