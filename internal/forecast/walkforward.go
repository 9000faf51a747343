package forecast

import (
	"fmt"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/ml"
)

// WalkConfig parameterizes one walk-forward backtest.
type WalkConfig struct {
	// TrainSize is the training window length and also the minimum history
	// required before the walk can leave its initializing phase.
	TrainSize int
	// TestSize is the held-out window length immediately following the
	// training window.
	TestSize int
	// Step is how far both windows slide between iterations. Defaults to
	// TestSize so consecutive test windows tile the history without overlap.
	Step int
	// Deadzone is the Flat label half-width, recorded on the artifact.
	Deadzone float64
	// MinClassExamples is the per-class floor below which a training window
	// is skipped as label-imbalanced. Zero disables the floor, so a strongly
	// trending series whose windows contain a single class can still fit; the
	// smoothed class prior keeps the resulting model finite.
	MinClassExamples int
	Model            ml.Config
}

func (c *WalkConfig) normalize() {
	if c.Step <= 0 {
		c.Step = c.TestSize
	}
	if c.MinClassExamples < 0 {
		c.MinClassExamples = 0
	}
	if c.Model.Rounds == 0 {
		c.Model = ml.DefaultConfig()
	}
}

// WalkResult is the outcome of one (ticker, horizon) walk: the live artifact
// (nil when no window could be fit) and the full backtest report.
type WalkResult struct {
	Artifact *models.ModelArtifact
	Report   models.BacktestReport
}

type pair struct {
	idx   int // position in vectors / price series
	label models.Class
}

// WalkForward walks forward through calendar time for one (ticker, horizon):
// fit on a training window, score on the strictly later test window, slide,
// repeat. The last fitted model becomes the live artifact. Windows missing a
// class are recorded as skipped and do not halt the walk.
//
// vectors[i] must correspond to prices.Dates[i]; the caller builds one vector
// per trading day over the same calendar.
func WalkForward(ticker string, horizon models.Horizon, vectors []models.FeatureVector, prices models.AlignedSeries, cfg WalkConfig) (*WalkResult, error) {
	cfg.normalize()
	if len(vectors) != prices.Len() {
		return nil, fmt.Errorf("walk %s/%s: %d vectors vs %d prices", ticker, horizon.Name, len(vectors), prices.Len())
	}
	if prices.Len() < cfg.TrainSize+horizon.Days+1 {
		return nil, fmt.Errorf("walk %s/%s: %w: have %d bars, need %d",
			ticker, horizon.Name, models.ErrInsufficientHistory, prices.Len(), cfg.TrainSize+horizon.Days+1)
	}

	labeler := Labeler{Deadzone: cfg.Deadzone}

	// Labelable rows: every date whose forward price exists.
	pairs := make([]pair, 0, prices.Len())
	for i := range vectors {
		if label, ok := labeler.Label(prices.Values, i, horizon.Days); ok {
			pairs = append(pairs, pair{idx: i, label: label})
		}
	}
	if len(pairs) < cfg.TrainSize+1 {
		return nil, fmt.Errorf("walk %s/%s: %w: %d labeled rows, need %d",
			ticker, horizon.Name, models.ErrInsufficientHistory, len(pairs), cfg.TrainSize+1)
	}

	report := models.BacktestReport{
		Ticker:      ticker,
		Horizon:     horizon.Name,
		Precision:   make(map[string]float64, models.NumClasses),
		Recall:      make(map[string]float64, models.NumClasses),
		ClassCounts: make(map[string]int, models.NumClasses),
	}
	for _, p := range pairs {
		report.ClassCounts[p.label.String()]++
	}

	var (
		artifact  *models.ModelArtifact
		accuracy  float64
		confusion [models.NumClasses][models.NumClasses]int // [actual][predicted]
	)

	for start := 0; start+cfg.TrainSize < len(pairs); start += cfg.Step {
		trainEnd := start + cfg.TrainSize
		testEnd := trainEnd + cfg.TestSize
		if testEnd > len(pairs) {
			testEnd = len(pairs)
		}
		train := pairs[start:trainEnd]
		test := pairs[trainEnd:testEnd]
		if len(test) == 0 {
			break
		}

		stat := models.WindowStat{
			TrainStart: prices.Dates[train[0].idx],
			TrainEnd:   prices.Dates[train[len(train)-1].idx],
			TestStart:  prices.Dates[test[0].idx],
			TestEnd:    prices.Dates[test[len(test)-1].idx],
			Support:    len(test),
		}

		if err := classCoverage(train, cfg.MinClassExamples); err != nil {
			stat.Skipped = true
			stat.SkipReason = err.Error()
			report.Windows = append(report.Windows, stat)
			report.WindowsSkipped++
			continue
		}

		model, err := fitWindow(vectors, train, cfg.Model)
		if err != nil {
			stat.Skipped = true
			stat.SkipReason = err.Error()
			report.Windows = append(report.Windows, stat)
			report.WindowsSkipped++
			continue
		}

		correct := 0
		for _, p := range test {
			probs := model.PredictProba(vectors[p.idx].Values)
			predicted := argmax(probs)
			confusion[int(p.label)][predicted]++
			if predicted == int(p.label) {
				correct++
			}
		}
		stat.Accuracy = float64(correct) / float64(len(test))
		report.Windows = append(report.Windows, stat)
		report.WindowsUsed++
		accuracy += stat.Accuracy

		artifact = &models.ModelArtifact{
			Ticker:      ticker,
			Horizon:     horizon,
			Schema:      vectors[0].Schema,
			Deadzone:    cfg.Deadzone,
			TrainStart:  stat.TrainStart,
			TrainEnd:    stat.TrainEnd,
			OOSAccuracy: stat.Accuracy,
			Model:       model,
		}
	}

	if report.WindowsUsed > 0 {
		// Mean of per-window accuracies, not pooled rows, so a long stable
		// stretch cannot dominate the metric.
		report.MeanAccuracy = accuracy / float64(report.WindowsUsed)
	}
	fillPrecisionRecall(&report, confusion)

	return &WalkResult{Artifact: artifact, Report: report}, nil
}

func fitWindow(vectors []models.FeatureVector, train []pair, cfg ml.Config) (*ml.GBDT, error) {
	x := make([][]float64, len(train))
	y := make([]int, len(train))
	for i, p := range train {
		x[i] = vectors[p.idx].Values
		y[i] = int(p.label)
	}
	return ml.Fit(x, y, models.NumClasses, cfg)
}

func classCoverage(train []pair, minPerClass int) error {
	if minPerClass <= 0 {
		return nil
	}
	var counts [models.NumClasses]int
	for _, p := range train {
		counts[p.label]++
	}
	for k, c := range counts {
		if c < minPerClass {
			return fmt.Errorf("%w: class %s has %d examples, need %d",
				models.ErrLabelImbalance, models.Class(k), c, minPerClass)
		}
	}
	return nil
}

func fillPrecisionRecall(report *models.BacktestReport, confusion [models.NumClasses][models.NumClasses]int) {
	for k := 0; k < models.NumClasses; k++ {
		name := models.Class(k).String()
		var predicted, actual int
		for j := 0; j < models.NumClasses; j++ {
			predicted += confusion[j][k]
			actual += confusion[k][j]
		}
		if predicted > 0 {
			report.Precision[name] = float64(confusion[k][k]) / float64(predicted)
		}
		if actual > 0 {
			report.Recall[name] = float64(confusion[k][k]) / float64(actual)
		}
	}
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
