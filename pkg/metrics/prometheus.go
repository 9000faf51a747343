package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	cacheAge        prometheus.Gauge
	windowsTotal    *prometheus.CounterVec
	lastConfidence  *prometheus.GaugeVec
	tickersSkipped  *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		refreshDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equicast_refresh_duration_seconds",
				Help:    "Duration of full pipeline refreshes",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equicast_pipeline_errors_total",
				Help: "Total pipeline errors by type",
			},
			[]string{"type"},
		),
		cacheAge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "equicast_cache_age_seconds",
				Help: "Age of the served result bundle",
			},
		),
		windowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equicast_walkforward_windows_total",
				Help: "Walk-forward windows trained or skipped",
			},
			[]string{"ticker", "horizon", "result"},
		),
		lastConfidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "equicast_last_confidence",
				Help: "Confidence of the latest recommendation",
			},
			[]string{"ticker", "horizon"},
		),
		tickersSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equicast_tickers_skipped_total",
				Help: "Tickers skipped during a refresh cycle",
			},
			[]string{"ticker"},
		),
	}
}

// RecordRefresh records one pipeline refresh and its outcome.
func (r *Recorder) RecordRefresh(outcome string, seconds float64) {
	r.refreshDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordPipelineError records an error occurrence by taxonomy type.
func (r *Recorder) RecordPipelineError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheAge records the age of the served bundle.
func (r *Recorder) RecordCacheAge(seconds float64) {
	r.cacheAge.Set(seconds)
}

// RecordWindow records one walk-forward window.
func (r *Recorder) RecordWindow(ticker, horizon string, skipped bool) {
	result := "used"
	if skipped {
		result = "skipped"
	}
	r.windowsTotal.WithLabelValues(ticker, horizon, result).Inc()
}

// RecordConfidence records the latest recommendation confidence.
func (r *Recorder) RecordConfidence(ticker, horizon string, confidence float64) {
	r.lastConfidence.WithLabelValues(ticker, horizon).Set(confidence)
}

// RecordTickerSkipped records a ticker skipped for the cycle.
func (r *Recorder) RecordTickerSkipped(ticker string) {
	r.tickersSkipped.WithLabelValues(ticker).Inc()
}
