package models

import (
	"math"
	"time"
)

// Class is a 3-way directional outcome.
type Class int

const (
	ClassDown Class = iota
	ClassFlat
	ClassUp
)

// NumClasses is the size of the directional label space.
const NumClasses = 3

func (c Class) String() string {
	switch c {
	case ClassDown:
		return "Down"
	case ClassFlat:
		return "Flat"
	case ClassUp:
		return "Up"
	}
	return "Unknown"
}

// Horizon is a forward-looking span measured in trading days.
type Horizon struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// Action is a discrete trading recommendation.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionHold  Action = "HOLD"
	ActionShort Action = "SHORT"
)

// ProbTriple is a normalized distribution over {Down, Flat, Up}.
type ProbTriple struct {
	Down float64 `json:"down"`
	Flat float64 `json:"flat"`
	Up   float64 `json:"up"`
}

// Sum returns the total mass of the triple.
func (p ProbTriple) Sum() float64 { return p.Down + p.Flat + p.Up }

// Valid reports whether the triple is a distribution within tol of 1 with
// every component in [0, 1].
func (p ProbTriple) Valid(tol float64) bool {
	for _, v := range []float64{p.Down, p.Flat, p.Up} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return math.Abs(p.Sum()-1) <= tol
}

// Classifier produces a class probability distribution for a feature row.
type Classifier interface {
	PredictProba(x []float64) []float64
}

// FeatureVector is one row of model input for a (ticker, date). Values are
// ordered by the named schema; vectors and artifacts carrying different
// schema versions are incompatible.
type FeatureVector struct {
	Ticker string
	Date   time.Time
	Schema string
	Values []float64
}

// ModelArtifact is a fitted classifier plus the metadata needed to audit and
// reuse it. Artifacts are superseded, never mutated: the walk-forward trainer
// replaces the whole value when a newer window finishes.
type ModelArtifact struct {
	Ticker     string
	Horizon    Horizon
	Schema     string
	Deadzone   float64
	TrainStart time.Time
	TrainEnd   time.Time
	// OOSAccuracy is the out-of-sample accuracy of this artifact's own test
	// window, not the whole-backtest mean.
	OOSAccuracy float64
	Model       Classifier
}

// WindowStat records one walk-forward window's out-of-sample result.
type WindowStat struct {
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
	Accuracy   float64   `json:"accuracy"`
	Support    int       `json:"support"`
	Skipped    bool      `json:"skipped,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
}

// BacktestReport aggregates all windows of one (ticker, horizon) walk.
type BacktestReport struct {
	Ticker  string       `json:"ticker"`
	Horizon string       `json:"horizon"`
	Windows []WindowStat `json:"windows"`
	// MeanAccuracy is the mean of per-window test accuracies. Pooling rows
	// across windows would let long stable stretches dominate the metric.
	MeanAccuracy   float64             `json:"mean_accuracy"`
	WindowsUsed    int                 `json:"windows_used"`
	WindowsSkipped int                 `json:"windows_skipped"`
	Precision      map[string]float64  `json:"precision"`
	Recall         map[string]float64  `json:"recall"`
	ClassCounts    map[string]int      `json:"class_counts"`
}

// HorizonForecast is the published prediction for one (ticker, horizon).
type HorizonForecast struct {
	Probs      ProbTriple `json:"probabilities"`
	Action     Action     `json:"recommendation"`
	Confidence float64    `json:"confidence"`
}

// TickerForecast is everything published for one ticker. Horizons a model
// could not be trained for are listed in Unavailable instead of carrying a
// fabricated HOLD.
type TickerForecast struct {
	Ticker      string                     `json:"ticker"`
	Date        time.Time                  `json:"date"`
	Close       float64                    `json:"close"`
	Horizons    map[string]HorizonForecast `json:"horizons"`
	Unavailable []string                   `json:"unavailable,omitempty"`
	Backtests   map[string]BacktestReport  `json:"backtests,omitempty"`
}

// PredictionBundle maps each modeled ticker to its forecast.
// Absence of a ticker means "not yet modeled", which consumers must treat as
// distinct from a HOLD.
type PredictionBundle struct {
	Forecasts map[string]*TickerForecast `json:"forecasts"`
}

// CacheEntry is a PredictionBundle plus its generation timestamp. Entries are
// replaced wholesale by a completed pipeline run and never patched in place.
type CacheEntry struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Bundle      PredictionBundle `json:"bundle"`
}

// Age returns how old the entry is relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.GeneratedAt)
}
