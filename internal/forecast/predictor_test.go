package forecast

import (
	"math"
	"testing"

	"EquiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	scores []float64
}

func (s stubModel) PredictProba(_ []float64) []float64 { return s.scores }

func artifactWith(scores []float64) *models.ModelArtifact {
	return &models.ModelArtifact{
		Ticker:  "NVDA",
		Horizon: models.Horizon{Name: "tomorrow", Days: 1},
		Schema:  "v1",
		Model:   stubModel{scores: scores},
	}
}

func vecV1() models.FeatureVector {
	return models.FeatureVector{Ticker: "NVDA", Schema: "v1", Values: []float64{1, 2, 3}}
}

func TestPredictNilArtifactUnavailable(t *testing.T) {
	var p Predictor
	_, err := p.Predict(nil, vecV1())
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestPredictSchemaMismatch(t *testing.T) {
	var p Predictor
	a := artifactWith([]float64{0.2, 0.3, 0.5})
	a.Schema = "v0"
	_, err := p.Predict(a, vecV1())
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestPredictPassthroughWhenNormalized(t *testing.T) {
	var p Predictor
	probs, err := p.Predict(artifactWith([]float64{0.2, 0.3, 0.5}), vecV1())
	require.NoError(t, err)
	assert.Equal(t, models.ProbTriple{Down: 0.2, Flat: 0.3, Up: 0.5}, probs)
	assert.True(t, probs.Valid(ProbTolerance))
}

func TestPredictRescalesRawScores(t *testing.T) {
	var p Predictor
	probs, err := p.Predict(artifactWith([]float64{2, 3, 5}), vecV1())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, probs.Down, 1e-12)
	assert.InDelta(t, 0.3, probs.Flat, 1e-12)
	assert.InDelta(t, 0.5, probs.Up, 1e-12)
	assert.True(t, probs.Valid(ProbTolerance))
}

func TestPredictNormalizationFailures(t *testing.T) {
	var p Predictor

	cases := map[string][]float64{
		"nan score":      {math.NaN(), 0.5, 0.5},
		"negative score": {-0.1, 0.6, 0.5},
		"zero mass":      {0, 0, 0},
		"wrong arity":    {0.5, 0.5},
	}
	for name, scores := range cases {
		_, err := p.Predict(artifactWith(scores), vecV1())
		assert.ErrorIs(t, err, models.ErrNormalization, name)
	}
}
