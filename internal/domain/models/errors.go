package models

import "errors"

// Pipeline error taxonomy. Callers match with errors.Is; every failure mode
// has a defined recovery in the refresh cycle.
var (
	// ErrDataUnavailable: a source collaborator could not supply a series.
	// The ticker is skipped for the cycle and the prior cached value kept.
	ErrDataUnavailable = errors.New("series data unavailable")

	// ErrRateLimited: the source throttled us. Treated like unavailable data
	// for the current cycle.
	ErrRateLimited = errors.New("source rate limited")

	// ErrInsufficientHistory: fewer points than the minimum training window.
	// The (ticker, horizon) is reported unavailable, never defaulted.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrLabelImbalance: a training window lacks examples of some class.
	// The window is skipped and the walk continues.
	ErrLabelImbalance = errors.New("training window missing a class")

	// ErrNormalization: probabilities failed to sum to 1 after correction.
	// The run is aborted for that (ticker, horizon).
	ErrNormalization = errors.New("probability normalization failed")

	// ErrCacheWrite: persisting the result document failed. The run result is
	// discarded and the next scheduled attempt retried in full.
	ErrCacheWrite = errors.New("cache write failed")

	// ErrNotModeled: consumer asked for a ticker absent from the bundle.
	ErrNotModeled = errors.New("ticker not yet modeled")
)
