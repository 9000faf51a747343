package models

// TickerRequest selects one ticker by its symbol.
type TickerRequest struct {
	Ticker string `query:"ticker" validate:"required,min=1,max=12"`
}

// HealthResponse reports liveness plus per-dependency status.
type HealthResponse struct {
	Status       string            `json:"status"`
	GeneratedAt  string            `json:"cache_generated_at,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

// TickersResponse lists the configured universe.
type TickersResponse struct {
	Tickers []string `json:"tickers"`
}

// PredictionsResponse is one ticker's cached forecast plus its generation
// timestamp.
type PredictionsResponse struct {
	GeneratedAt string          `json:"generated_at"`
	Forecast    *TickerForecast `json:"forecast"`
}

// BacktestResponse carries the walk-forward statistics per horizon.
type BacktestResponse struct {
	Ticker      string                    `json:"ticker"`
	GeneratedAt string                    `json:"generated_at"`
	Backtests   map[string]BacktestReport `json:"backtests"`
}

// RefreshResponse acknowledges a forced refresh.
type RefreshResponse struct {
	GeneratedAt string `json:"generated_at"`
	Tickers     int    `json:"tickers"`
}
