package forecast

import (
	"testing"

	"EquiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelDirections(t *testing.T) {
	l := Labeler{Deadzone: 0.004}
	closes := []float64{100, 100.5, 99.5, 100.2}

	up, ok := l.Label(closes, 0, 1) // +0.5%
	require.True(t, ok)
	assert.Equal(t, models.ClassUp, up)

	down, ok := l.Label(closes, 1, 1) // -1.0%
	require.True(t, ok)
	assert.Equal(t, models.ClassDown, down)
}

func TestLabelDeadzoneIsFlat(t *testing.T) {
	l := Labeler{Deadzone: 0.004}

	// +0.3% sits inside the dead zone.
	label, ok := l.Label([]float64{100, 100.3}, 0, 1)
	require.True(t, ok)
	assert.Equal(t, models.ClassFlat, label)

	// Exactly at the boundary stays Flat: Up requires strictly greater.
	label, ok = l.Label([]float64{100, 100.4}, 0, 1)
	require.True(t, ok)
	assert.Equal(t, models.ClassFlat, label)
}

func TestLabelEndOfHistory(t *testing.T) {
	l := Labeler{Deadzone: 0.004}
	closes := []float64{100, 101, 102}

	_, ok := l.Label(closes, 2, 1)
	assert.False(t, ok, "no forward price for the last bar")

	_, ok = l.Label(closes, 1, 5)
	assert.False(t, ok, "horizon extends past the series end")
}

func TestLabelBadBase(t *testing.T) {
	l := Labeler{}
	_, ok := l.Label([]float64{0, 100}, 0, 1)
	assert.False(t, ok)
}
