package fasttree

import (
	"context"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// TweedieOptions configures TweedieTrainer.
type TweedieOptions struct {
	Options `yaml:",inline"`

	// Index is the Tweedie variance power, 1 (Poisson) to 2 (Gamma).
	Index       float64     `yaml:"index"`
	LabelPolicy LabelPolicy `yaml:"label_policy"`
}

// DefaultTweedieOptions returns DefaultOptions with Index 1.5.
func DefaultTweedieOptions() TweedieOptions {
	return TweedieOptions{Options: DefaultOptions(), Index: 1.5}
}

// TweedieTrainer trains a FastTree ensemble on the Tweedie loss. Predictions
// are exp of the ensemble score.
type TweedieTrainer struct {
	BoostingTrainer
	Index       float64
	LabelPolicy LabelPolicy
}

// NewTweedieTrainer creates a trainer from opts.
func NewTweedieTrainer(opts TweedieOptions) *TweedieTrainer {
	t := &TweedieTrainer{Index: opts.Index, LabelPolicy: opts.LabelPolicy}
	t.BoostingTrainer = newBoostingTrainer(opts.Options, t)
	return t
}

// Fit trains on train. valid, which may be nil, drives pruning and early
// stopping; tests are only evaluated for reporting.
func (t *TweedieTrainer) Fit(ctx context.Context, train, valid *Dataset, tests ...*Dataset) (*TrainingResult, error) {
	if t.Options.EarlyStoppingRule != nil {
		ftErrors.Warn(ftErrors.NewMetricMismatchWarning("early stopping", "L1 of exp(score)", "Tweedie deviance"))
	}
	if t.Options.EnablePruning {
		ftErrors.Warn(ftErrors.NewMetricMismatchWarning("pruning", "L1 of exp(score)", "Tweedie deviance"))
	}
	return t.fit(ctx, train, valid, tests)
}

func (t *TweedieTrainer) name() string { return "FastTreeTweedie" }

func (t *TweedieTrainer) predictionKind() PredictionKind { return TweediePrediction }

func (t *TweedieTrainer) newObjective(train *Dataset, opts ObjectiveOptions) (ObjectiveFunction, error) {
	return NewTweedieObjective(train, t.Index, t.LabelPolicy, opts)
}

func (t *TweedieTrainer) newTest(tracker *ScoreTracker) Test {
	return NewTweedieRegressionTest(tracker, t.Index)
}
