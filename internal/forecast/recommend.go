package forecast

import "EquiCast/internal/domain/models"

// DefaultThreshold is the default confidence gate for directional actions.
const DefaultThreshold = 0.6

// Recommendation is a gated action plus the probability that drove it.
type Recommendation struct {
	Action     models.Action
	Confidence float64
	// Inconsistent marks the case where both directional
	// probabilities cleared the threshold. It is surfaced for logging and
	// never silently resolved toward the larger side.
	Inconsistent bool
}

// Recommend maps a probability triple and a confidence threshold to an
// action. It is a pure function: identical inputs always produce the
// identical recommendation.
//
//	P(Up)   >= tau          -> BUY
//	P(Down) >= tau          -> SHORT
//	otherwise               -> HOLD with confidence P(Flat)
//	both directions >= tau  -> HOLD, inconsistent input
func Recommend(p models.ProbTriple, tau float64) Recommendation {
	upHit := p.Up >= tau
	downHit := p.Down >= tau

	switch {
	case upHit && downHit:
		// Impossible for a normalized triple with tau > 0.5, but guarded.
		return Recommendation{Action: models.ActionHold, Confidence: p.Flat, Inconsistent: true}
	case upHit:
		return Recommendation{Action: models.ActionBuy, Confidence: p.Up}
	case downHit:
		return Recommendation{Action: models.ActionShort, Confidence: p.Down}
	default:
		return Recommendation{Action: models.ActionHold, Confidence: p.Flat}
	}
}
