package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
finnhub:
  api_key: key-123
forecast:
  tickers: [NVDA, ORCL]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults: got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Forecast.Deadzone != 0.004 {
		t.Errorf("deadzone default: got %v", cfg.Forecast.Deadzone)
	}
	if cfg.Forecast.Threshold != 0.6 {
		t.Errorf("threshold default: got %v", cfg.Forecast.Threshold)
	}
	if cfg.Forecast.TrainWindow != 120 || cfg.Forecast.TestWindow != 20 {
		t.Errorf("window defaults: got %d/%d", cfg.Forecast.TrainWindow, cfg.Forecast.TestWindow)
	}
	if cfg.Forecast.Step != cfg.Forecast.TestWindow {
		t.Errorf("step should default to test window, got %d", cfg.Forecast.Step)
	}
	if cfg.Forecast.CacheMaxAge != 24*time.Hour {
		t.Errorf("cache max age default: got %v", cfg.Forecast.CacheMaxAge)
	}
	if got := cfg.Forecast.Horizons["one_month"]; got != 20 {
		t.Errorf("horizon defaults: one_month = %d", got)
	}
	if cfg.Forecast.MarketSymbol != "^GSPC" || cfg.Forecast.VolSymbol != "^VIX" {
		t.Errorf("symbol defaults: got %s/%s", cfg.Forecast.MarketSymbol, cfg.Forecast.VolSymbol)
	}
	if cfg.Forecast.MinClassExamples == nil || *cfg.Forecast.MinClassExamples != 2 {
		t.Errorf("min_class_examples default: got %v", cfg.Forecast.MinClassExamples)
	}
	if cfg.Forecast.CacheBackend != "file" {
		t.Errorf("cache_backend default: got %q", cfg.Forecast.CacheBackend)
	}
}

func TestLoadExplicitValuesSurviveDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: test
finnhub:
  api_key: key-123
forecast:
  tickers: [NVDA]
  deadzone: 0.01
  threshold: 0.8
  train_window: 200
  test_window: 40
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Forecast.Deadzone != 0.01 || cfg.Forecast.Threshold != 0.8 {
		t.Errorf("explicit values overwritten: %v/%v", cfg.Forecast.Deadzone, cfg.Forecast.Threshold)
	}
	if cfg.Forecast.Step != 40 {
		t.Errorf("step should follow explicit test window, got %d", cfg.Forecast.Step)
	}
}

func TestLoadExplicitZeroClassFloorSurvives(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML + "  min_class_examples: 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Forecast.MinClassExamples == nil || *cfg.Forecast.MinClassExamples != 0 {
		t.Errorf("explicit zero floor overwritten: got %v", cfg.Forecast.MinClassExamples)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no environment",
			yaml: "finnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n",
			want: "environment",
		},
		{
			name: "no tickers",
			yaml: "environment: test\nfinnhub:\n  api_key: k\n",
			want: "tickers",
		},
		{
			name: "no api key",
			yaml: "environment: test\nforecast:\n  tickers: [A]\n",
			want: "api_key",
		},
		{
			name: "train window too small",
			yaml: "environment: test\nfinnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n  train_window: 10\n  test_window: 20\n",
			want: "train_window",
		},
		{
			name: "bad threshold",
			yaml: "environment: test\nfinnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n  threshold: 1.5\n",
			want: "threshold",
		},
		{
			name: "bad horizon",
			yaml: "environment: test\nfinnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n  horizons:\n    tomorrow: -1\n",
			want: "horizons",
		},
		{
			name: "negative class floor",
			yaml: "environment: test\nfinnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n  min_class_examples: -1\n",
			want: "min_class_examples",
		},
		{
			name: "unknown cache backend",
			yaml: "environment: test\nfinnhub:\n  api_key: k\nforecast:\n  tickers: [A]\n  cache_backend: sqlite\n",
			want: "cache_backend",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "env-key")
	t.Setenv("TICKERS", "AAPL,MSFT")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Finnhub.APIKey != "env-key" {
		t.Errorf("api key override: got %s", cfg.Finnhub.APIKey)
	}
	if len(cfg.Forecast.Tickers) != 2 || cfg.Forecast.Tickers[0] != "AAPL" {
		t.Errorf("tickers override: got %v", cfg.Forecast.Tickers)
	}
	if cfg.ClickHouse.Host != "ch.internal" {
		t.Errorf("clickhouse host override: got %s", cfg.ClickHouse.Host)
	}
}
