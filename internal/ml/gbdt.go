// Package ml implements the gradient-boosted multiclass tree classifier used
// by the walk-forward trainer. Fitting is fully deterministic: greedy exact
// splits over all features, no subsampling, so repeated runs on the same
// window produce the same model.
package ml

import (
	"fmt"
	"math"
)

// Config holds the boosting hyperparameters.
type Config struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
}

// DefaultConfig returns hyperparameters sized for small daily-bar windows.
func DefaultConfig() Config {
	return Config{
		Rounds:       60,
		LearningRate: 0.1,
		MaxDepth:     3,
		MinLeaf:      5,
	}
}

// GBDT is a fitted gradient-boosted classifier over K classes. One regression
// tree per class per round, softmax objective.
type GBDT struct {
	cfg     Config
	classes int
	prior   []float64
	trees   [][]*node // [round][class]
}

// Fit trains a classifier on rows X with integer labels y in [0, classes).
func Fit(X [][]float64, y []int, classes int, cfg Config) (*GBDT, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("ml: %d rows vs %d labels", n, len(y))
	}
	if classes < 2 {
		return nil, fmt.Errorf("ml: need at least 2 classes, got %d", classes)
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("ml: row %d has width %d, want %d", i, len(row), width)
		}
	}
	for i, label := range y {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("ml: label %d out of range at row %d", label, i)
		}
	}

	m := &GBDT{cfg: cfg, classes: classes, prior: logPriors(y, classes)}

	// Raw scores F[i][k], updated additively each round.
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, classes)
		copy(scores[i], m.prior)
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	kFactor := float64(classes-1) / float64(classes)

	for round := 0; round < cfg.Rounds; round++ {
		roundTrees := make([]*node, classes)
		for k := 0; k < classes; k++ {
			for i := 0; i < n; i++ {
				p := softmaxAt(scores[i], k)
				target := 0.0
				if y[i] == k {
					target = 1
				}
				grad[i] = target - p
				h := p * (1 - p) / kFactor
				if h < 1e-9 {
					h = 1e-9
				}
				hess[i] = h
			}
			roundTrees[k] = fitTree(X, grad, hess, rows, cfg.MaxDepth, cfg.MinLeaf)
		}
		for i := 0; i < n; i++ {
			for k := 0; k < classes; k++ {
				scores[i][k] += cfg.LearningRate * roundTrees[k].predict(X[i])
			}
		}
		m.trees = append(m.trees, roundTrees)
	}

	return m, nil
}

// PredictProba returns the softmax-normalized class distribution for x.
// The result sums to 1 by construction.
func (m *GBDT) PredictProba(x []float64) []float64 {
	scores := make([]float64, m.classes)
	copy(scores, m.prior)
	for _, roundTrees := range m.trees {
		for k, t := range roundTrees {
			scores[k] += m.cfg.LearningRate * t.predict(x)
		}
	}
	return softmax(scores)
}

// Classes returns the label-space size the model was fit for.
func (m *GBDT) Classes() int { return m.classes }

func logPriors(y []int, classes int) []float64 {
	counts := make([]float64, classes)
	for _, label := range y {
		counts[label]++
	}
	out := make([]float64, classes)
	n := float64(len(y))
	for k := range out {
		// Laplace smoothing keeps the prior finite for rare classes.
		out[k] = math.Log((counts[k] + 1) / (n + float64(classes)))
	}
	return out
}

func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func softmaxAt(scores []float64, k int) float64 {
	return softmax(scores)[k]
}
