package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DailyReturns computes simple returns r_t = C_t/C_{t-1} - 1.
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// TrailingReturn computes the simple return over the last `lookback` trading
// days ending at the last element. Returns (0, false) when the series is too
// short for the lookback.
func TrailingReturn(closes []float64, lookback int) (float64, bool) {
	if lookback < 1 || len(closes) < lookback+1 {
		return 0, false
	}
	base := closes[len(closes)-1-lookback]
	if base <= 0 {
		return 0, false
	}
	return closes[len(closes)-1]/base - 1, true
}

// RollingVolatility is the sample standard deviation of daily returns over
// the trailing window.
func RollingVolatility(closes []float64, window int) (float64, bool) {
	rets := DailyReturns(closes)
	if window < 2 || len(rets) < window {
		return 0, false
	}
	return stat.StdDev(rets[len(rets)-window:], nil), true
}

// RSI computes the Relative Strength Index over the trailing period using
// simple averages of gains and losses.
func RSI(closes []float64, period int) (float64, bool) {
	rets := DailyReturns(closes)
	if period < 1 || len(rets) < period {
		return 0, false
	}
	var gain, loss float64
	for _, r := range rets[len(rets)-period:] {
		if r > 0 {
			gain += r
		} else {
			loss -= r
		}
	}
	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

// Drawdown is the fractional distance of the last close below the trailing
// rolling maximum: 0 at a new high, negative below it.
func Drawdown(closes []float64, window int) (float64, bool) {
	if window < 1 || len(closes) < 1 {
		return 0, false
	}
	start := len(closes) - window
	if start < 0 {
		start = 0
	}
	peak := math.Inf(-1)
	for _, c := range closes[start:] {
		if c > peak {
			peak = c
		}
	}
	if peak <= 0 {
		return 0, false
	}
	return closes[len(closes)-1]/peak - 1, true
}

// Change is the absolute difference between the last value and the value
// `lookback` positions earlier.
func Change(values []float64, lookback int) (float64, bool) {
	if lookback < 1 || len(values) < lookback+1 {
		return 0, false
	}
	return values[len(values)-1] - values[len(values)-1-lookback], true
}
