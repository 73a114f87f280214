package fasttree

import "context"

// RegressionTrainer trains a FastTree ensemble on squared error.
type RegressionTrainer struct {
	BoostingTrainer
}

// NewRegressionTrainer creates a trainer from opts.
func NewRegressionTrainer(opts Options) *RegressionTrainer {
	t := &RegressionTrainer{}
	t.BoostingTrainer = newBoostingTrainer(opts, t)
	return t
}

// Fit trains on train with optional validation and test sets.
func (t *RegressionTrainer) Fit(ctx context.Context, train, valid *Dataset, tests ...*Dataset) (*TrainingResult, error) {
	return t.fit(ctx, train, valid, tests)
}

func (t *RegressionTrainer) name() string { return "FastTreeRegression" }

func (t *RegressionTrainer) predictionKind() PredictionKind { return RegressionPrediction }

func (t *RegressionTrainer) newObjective(train *Dataset, opts ObjectiveOptions) (ObjectiveFunction, error) {
	return NewRegressionObjective(train, opts), nil
}

func (t *RegressionTrainer) newTest(tracker *ScoreTracker) Test {
	return NewRegressionTest(tracker, nil)
}
