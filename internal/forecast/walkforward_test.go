package forecast

import (
	"testing"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSeries builds n daily bars where the forward return is fully
// determined by a single feature: regime 0 falls 1%, regime 1 holds, regime 2
// rises 1%. A competent classifier separates the three perfectly.
func syntheticSeries(t *testing.T, n int) ([]models.FeatureVector, models.AlignedSeries) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deltas := []float64{-0.01, 0, 0.01}

	dates := make([]time.Time, n)
	closes := make([]float64, n)
	vectors := make([]models.FeatureVector, n)

	price := 100.0
	for i := 0; i < n; i++ {
		dates[i] = base.AddDate(0, 0, i)
		closes[i] = price
		regime := i % 3
		vectors[i] = models.FeatureVector{
			Ticker: "SYN",
			Date:   dates[i],
			Schema: "v1",
			Values: []float64{float64(regime)},
		}
		price *= 1 + deltas[regime]
	}

	prices, err := models.NewAlignedSeries("SYN", dates, closes)
	require.NoError(t, err)
	return vectors, prices
}

func walkCfg() WalkConfig {
	return WalkConfig{
		TrainSize:        60,
		TestSize:         15,
		Deadzone:         0.004,
		MinClassExamples: 2,
		Model:            ml.Config{Rounds: 20, LearningRate: 0.3, MaxDepth: 2, MinLeaf: 2},
	}
}

func TestWalkForwardLearnsSeparableRegimes(t *testing.T) {
	vectors, prices := syntheticSeries(t, 240)
	horizon := models.Horizon{Name: "tomorrow", Days: 1}

	res, err := WalkForward("SYN", horizon, vectors, prices, walkCfg())
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)

	assert.Greater(t, res.Report.WindowsUsed, 1)
	assert.Greater(t, res.Report.MeanAccuracy, 0.9)
	assert.Equal(t, "v1", res.Artifact.Schema)
	assert.Equal(t, 0.004, res.Artifact.Deadzone)
}

func TestWalkForwardTrainPrecedesTest(t *testing.T) {
	vectors, prices := syntheticSeries(t, 240)
	horizon := models.Horizon{Name: "tomorrow", Days: 1}

	res, err := WalkForward("SYN", horizon, vectors, prices, walkCfg())
	require.NoError(t, err)

	for _, w := range res.Report.Windows {
		assert.True(t, w.TrainEnd.Before(w.TestStart),
			"train window [%s, %s] must end before test window starts %s",
			w.TrainStart, w.TrainEnd, w.TestStart)
	}
}

func TestWalkForwardMeanIsPerWindowMean(t *testing.T) {
	vectors, prices := syntheticSeries(t, 240)
	horizon := models.Horizon{Name: "tomorrow", Days: 1}

	res, err := WalkForward("SYN", horizon, vectors, prices, walkCfg())
	require.NoError(t, err)
	require.Greater(t, res.Report.WindowsUsed, 0)

	var sum float64
	for _, w := range res.Report.Windows {
		if !w.Skipped {
			sum += w.Accuracy
		}
	}
	assert.InDelta(t, sum/float64(res.Report.WindowsUsed), res.Report.MeanAccuracy, 1e-12)
}

func TestWalkForwardInsufficientHistory(t *testing.T) {
	vectors, prices := syntheticSeries(t, 40)
	horizon := models.Horizon{Name: "tomorrow", Days: 1}

	_, err := WalkForward("SYN", horizon, vectors, prices, walkCfg())
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

// rallySeries builds n daily bars rising by the same fraction every day, so
// every labelable row is Up once the horizon return clears the dead zone.
func rallySeries(t *testing.T, n int, daily float64) ([]models.FeatureVector, models.AlignedSeries) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	closes := make([]float64, n)
	vectors := make([]models.FeatureVector, n)
	price := 100.0
	for i := 0; i < n; i++ {
		dates[i] = base.AddDate(0, 0, i)
		closes[i] = price
		vectors[i] = models.FeatureVector{Ticker: "SYN", Schema: "v1", Date: dates[i], Values: []float64{1}}
		price *= 1 + daily
	}
	prices, err := models.NewAlignedSeries("SYN", dates, closes)
	require.NoError(t, err)
	return vectors, prices
}

func TestWalkForwardSkipsOneClassWindows(t *testing.T) {
	// Monotone rally: every label is Up, so no window has class coverage.
	vectors, prices := rallySeries(t, 240, 0.005)

	res, err := WalkForward("SYN", models.Horizon{Name: "tomorrow", Days: 1}, vectors, prices, walkCfg())
	require.NoError(t, err, "imbalance skips windows, it does not halt the walk")

	assert.Nil(t, res.Artifact)
	assert.Equal(t, 0, res.Report.WindowsUsed)
	assert.Greater(t, res.Report.WindowsSkipped, 0)
	for _, w := range res.Report.Windows {
		assert.True(t, w.Skipped)
		assert.Contains(t, w.SkipReason, "missing a class")
	}
}

func TestWalkForwardRallyFitsWithoutClassFloor(t *testing.T) {
	// 100 bars rising 0.5% a day: the 5-day forward return is ~2.5%, far
	// outside a 0.1% dead zone, so every row labels Up. With the per-class
	// floor disabled the single-class windows fit and the artifact leans Up
	// hard enough to clear the directional gate.
	vectors, prices := rallySeries(t, 100, 0.005)

	cfg := WalkConfig{
		TrainSize:        60,
		TestSize:         15,
		Deadzone:         0.001,
		MinClassExamples: 0,
		Model:            ml.Config{Rounds: 20, LearningRate: 0.3, MaxDepth: 2, MinLeaf: 2},
	}
	res, err := WalkForward("SYN", models.Horizon{Name: "one_week", Days: 5}, vectors, prices, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)

	assert.Greater(t, res.Report.WindowsUsed, 0)
	assert.Equal(t, 0, res.Report.WindowsSkipped)
	assert.Equal(t, 1.0, res.Report.MeanAccuracy)

	probs, err := Predictor{}.Predict(res.Artifact, vectors[len(vectors)-1])
	require.NoError(t, err)
	assert.Greater(t, probs.Up, 0.9)
	assert.Equal(t, models.ActionBuy, Recommend(probs, DefaultThreshold).Action)
}

func TestClassCoverageWrapsLabelImbalance(t *testing.T) {
	train := []pair{
		{idx: 0, label: models.ClassUp},
		{idx: 1, label: models.ClassUp},
		{idx: 2, label: models.ClassUp},
	}

	err := classCoverage(train, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLabelImbalance)

	assert.NoError(t, classCoverage(train, 0))
}
