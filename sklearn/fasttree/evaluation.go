package fasttree

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/TomFinley/machinelearning/metrics"
)

// TestResult is one named metric value.
type TestResult struct {
	Name          string
	Value         float64
	LowerIsBetter bool
}

// Test computes metrics over the current scores of one dataset.
type Test interface {
	Name() string
	ComputeTests() ([]TestResult, error)
}

// RegressionTest reports weighted L1, L2 and RMS of the transformed scores
// against the labels, plus the Tweedie deviance when a power is set.
// Results are memoized on the tracker version.
type RegressionTest struct {
	tracker   *ScoreTracker
	transform func(float64) float64

	tweedie bool
	power   float64

	preds      []float64
	cached     []TestResult
	cachedAt   uint64
	haveCached bool
}

// NewRegressionTest creates a test over tracker. A nil transform means the
// raw scores are compared with the labels.
func NewRegressionTest(tracker *ScoreTracker, transform func(float64) float64) *RegressionTest {
	return &RegressionTest{tracker: tracker, transform: transform}
}

// NewTweedieRegressionTest is NewRegressionTest with the exp transform and
// the Tweedie deviance at power appended to the results.
func NewTweedieRegressionTest(tracker *ScoreTracker, power float64) *RegressionTest {
	return &RegressionTest{tracker: tracker, transform: TweedieTransform, tweedie: true, power: power}
}

// Name returns the name of the tracked dataset.
func (t *RegressionTest) Name() string { return t.tracker.Name() }

// ComputeTests implements Test.
func (t *RegressionTest) ComputeTests() ([]TestResult, error) {
	scores, err := t.tracker.Scores()
	if err != nil {
		return nil, err
	}
	version := t.tracker.Version()
	if t.haveCached && t.cachedAt == version {
		return t.cached, nil
	}

	if len(t.preds) != len(scores) {
		t.preds = make([]float64, len(scores))
	}
	for i, s := range scores {
		if t.transform != nil {
			s = t.transform(s)
		}
		t.preds[i] = s
	}
	data := t.tracker.Dataset()
	labels, weights := data.Targets(), data.SampleWeights()

	l1, err := metrics.L1(labels, t.preds, weights)
	if err != nil {
		return nil, err
	}
	l2, err := metrics.L2(labels, t.preds, weights)
	if err != nil {
		return nil, err
	}
	rms, err := metrics.RMS(labels, t.preds, weights)
	if err != nil {
		return nil, err
	}
	results := []TestResult{
		{Name: "L1", Value: l1, LowerIsBetter: true},
		{Name: "L2", Value: l2, LowerIsBetter: true},
		{Name: "RMS", Value: rms, LowerIsBetter: true},
	}
	if t.tweedie {
		results = append(results, TestResult{Name: "TweedieDeviance", Value: t.deviance(labels, weights), LowerIsBetter: true})
	}

	t.cached, t.cachedAt, t.haveCached = results, version, true
	return results, nil
}

// deviance clamps labels at 0 and predictions away from 0. It is NaN where
// the deviance is undefined, e.g. a zero label at power 2.
func (t *RegressionTest) deviance(labels, weights []float64) float64 {
	ys := make([]float64, len(labels))
	mus := make([]float64, len(labels))
	for i, y := range labels {
		ys[i] = math.Max(0, y)
		mus[i] = math.Max(t.preds[i], minPositivePrediction)
	}
	dev, err := metrics.TweedieDeviance(ys, mus, weights, t.power)
	if err != nil {
		return math.NaN()
	}
	return dev
}

const minPositivePrediction = 0x1p-1022

// PruningTest follows one metric of a Test across iterations and remembers
// the iteration the ensemble should be truncated to.
type PruningTest interface {
	// Update records the metric for the ensemble of iteration trees.
	Update(iteration int) error
	BestIteration() int
	BestResult() TestResult
}

// TestHistory keeps the best value seen so far of metric metricIndex.
type TestHistory struct {
	test        Test
	metricIndex int

	history  []TestResult
	best     TestResult
	bestIter int
}

// NewTestHistory follows metric metricIndex of test.
func NewTestHistory(test Test, metricIndex int) *TestHistory {
	return &TestHistory{test: test, metricIndex: metricIndex}
}

// Update implements PruningTest.
func (h *TestHistory) Update(iteration int) error {
	r, err := h.current()
	if err != nil {
		return err
	}
	h.history = append(h.history, r)
	if h.bestIter == 0 || isBetter(r.Value, h.best.Value, r.LowerIsBetter) {
		h.best, h.bestIter = r, iteration
	}
	return nil
}

func (h *TestHistory) current() (TestResult, error) {
	results, err := h.test.ComputeTests()
	if err != nil {
		return TestResult{}, err
	}
	return results[h.metricIndex], nil
}

// BestIteration implements PruningTest. It is 0 before the first Update.
func (h *TestHistory) BestIteration() int { return h.bestIter }

// BestResult implements PruningTest.
func (h *TestHistory) BestResult() TestResult { return h.best }

// History returns the recorded results, one per Update.
func (h *TestHistory) History() []TestResult { return h.history }

// TestWindowWithTolerance smooths the metric with a moving average over the
// last windowSize iterations and picks the earliest iteration whose average
// is within a relative tolerance of the best average.
type TestWindowWithTolerance struct {
	TestHistory
	windowSize int
	tolerance  float64

	iterations []int
	averages   []float64
}

// NewTestWindowWithTolerance follows metric metricIndex of test.
func NewTestWindowWithTolerance(test Test, metricIndex, windowSize int, tolerance float64) *TestWindowWithTolerance {
	return &TestWindowWithTolerance{
		TestHistory: TestHistory{test: test, metricIndex: metricIndex},
		windowSize:  max(1, windowSize),
		tolerance:   tolerance,
	}
}

// Update implements PruningTest.
func (w *TestWindowWithTolerance) Update(iteration int) error {
	r, err := w.current()
	if err != nil {
		return err
	}
	w.history = append(w.history, r)
	w.iterations = append(w.iterations, iteration)

	n := min(len(w.history), w.windowSize)
	window := make([]float64, n)
	for i, h := range w.history[len(w.history)-n:] {
		window[i] = h.Value
	}
	w.averages = append(w.averages, stat.Mean(window, nil))

	lower := r.LowerIsBetter
	bestAvg := floats.Max(w.averages)
	if lower {
		bestAvg = floats.Min(w.averages)
	}
	slack := math.Abs(bestAvg) * w.tolerance
	idx := slices.IndexFunc(w.averages, func(a float64) bool {
		if lower {
			return a <= bestAvg+slack
		}
		return a >= bestAvg-slack
	})
	w.bestIter = w.iterations[idx]
	w.best = TestResult{Name: r.Name, Value: w.averages[idx], LowerIsBetter: lower}
	return nil
}

func isBetter(v, best float64, lowerIsBetter bool) bool {
	if lowerIsBetter {
		return v < best
	}
	return v > best
}
