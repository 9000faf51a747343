package forecast

import "EquiCast/internal/domain/models"

// Labeler derives 3-class directional labels from forward returns. Flat is a
// symmetric dead-zone around zero, not a midpoint: |forward return| within
// Deadzone labels Flat. The width is a tuned parameter and is recorded on
// every ModelArtifact fit with it.
type Labeler struct {
	Deadzone float64
}

// Label classifies the forward return from closes[idx] to
// closes[idx+horizonDays]. It returns ok=false when the forward price is
// unavailable (too close to the end of history); the caller excludes the
// training pair instead of guessing.
func (l Labeler) Label(closes []float64, idx, horizonDays int) (models.Class, bool) {
	j := idx + horizonDays
	if idx < 0 || j >= len(closes) || closes[idx] <= 0 {
		return 0, false
	}
	fwd := closes[j]/closes[idx] - 1
	switch {
	case fwd > l.Deadzone:
		return models.ClassUp, true
	case fwd < -l.Deadzone:
		return models.ClassDown, true
	default:
		return models.ClassFlat, true
	}
}
