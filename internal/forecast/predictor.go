package forecast

import (
	"fmt"
	"math"

	"EquiCast/internal/domain/models"
)

// ProbTolerance is the maximum deviation from 1 a published probability
// triple may carry.
const ProbTolerance = 1e-6

// Predictor turns the latest model artifact and the most recent feature
// vector into a published probability triple. Normalization of raw classifier
// scores is this component's contract, not the caller's.
type Predictor struct{}

// Predict produces the {Down, Flat, Up} distribution for one (ticker,
// horizon). A nil artifact means no model exists yet (insufficient history);
// the caller reports the horizon unavailable rather than fabricating a
// default.
func (Predictor) Predict(artifact *models.ModelArtifact, vec models.FeatureVector) (models.ProbTriple, error) {
	if artifact == nil || artifact.Model == nil {
		return models.ProbTriple{}, models.ErrInsufficientHistory
	}
	if artifact.Schema != vec.Schema {
		return models.ProbTriple{}, fmt.Errorf("artifact schema %s incompatible with vector schema %s: %w",
			artifact.Schema, vec.Schema, models.ErrInsufficientHistory)
	}

	raw := artifact.Model.PredictProba(vec.Values)
	if len(raw) != models.NumClasses {
		return models.ProbTriple{}, fmt.Errorf("%w: classifier returned %d scores", models.ErrNormalization, len(raw))
	}

	probs, err := normalize(raw)
	if err != nil {
		return models.ProbTriple{}, err
	}
	return models.ProbTriple{
		Down: probs[models.ClassDown],
		Flat: probs[models.ClassFlat],
		Up:   probs[models.ClassUp],
	}, nil
}

// normalize rescales raw scores to a distribution. Scores that are already
// within tolerance pass through unchanged; anything that cannot be corrected
// (non-finite, non-positive mass) is a NormalizationFailure.
func normalize(raw []float64) ([]float64, error) {
	var sum float64
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: score %v", models.ErrNormalization, v)
		}
		sum += v
	}
	if math.Abs(sum-1) <= ProbTolerance {
		return raw, nil
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: scores sum to %v", models.ErrNormalization, sum)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v / sum
	}
	var check float64
	for _, v := range out {
		check += v
	}
	if math.Abs(check-1) > ProbTolerance {
		return nil, fmt.Errorf("%w: sum %v after rescale", models.ErrNormalization, check)
	}
	return out, nil
}
