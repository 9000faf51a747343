package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReturns(t *testing.T) {
	rets := DailyReturns([]float64{100, 110, 99})
	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-12)
	assert.InDelta(t, -0.10, rets[1], 1e-12)

	assert.Nil(t, DailyReturns([]float64{100}))
}

func TestTrailingReturn(t *testing.T) {
	closes := []float64{100, 105, 110, 120}

	r, ok := TrailingReturn(closes, 3)
	require.True(t, ok)
	assert.InDelta(t, 0.20, r, 1e-12)

	_, ok = TrailingReturn(closes, 4)
	assert.False(t, ok, "lookback needs lookback+1 points")
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{100, 101, 102, 103, 104, 105}
	rsi, ok := RSI(up, 5)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	down := []float64{105, 104, 103, 102, 101, 100}
	rsi, ok = RSI(down, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestDrawdown(t *testing.T) {
	dd, ok := Drawdown([]float64{100, 120, 90}, 3)
	require.True(t, ok)
	assert.InDelta(t, -0.25, dd, 1e-12)

	// At a new high the drawdown is zero.
	dd, ok = Drawdown([]float64{90, 100, 120}, 3)
	require.True(t, ok)
	assert.Zero(t, dd)
}

func TestChange(t *testing.T) {
	c, ok := Change([]float64{15, 16, 18, 20}, 2)
	require.True(t, ok)
	assert.Equal(t, 4.0, c)

	_, ok = Change([]float64{15}, 2)
	assert.False(t, ok)
}

func TestRollingVolatilityConstantSeries(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	vol, ok := RollingVolatility(flat, 20)
	require.True(t, ok)
	assert.Zero(t, vol)
}
