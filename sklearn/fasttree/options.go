package fasttree

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
)

// Options configures a boosting trainer. Use DefaultOptions as a starting
// point; Fit validates a copy with CheckArgs.
type Options struct {
	NumTrees      int `yaml:"num_trees" validate:"gte=1"`
	NumLeaves     int `yaml:"num_leaves" validate:"gte=2"`
	MinDocsInLeaf int `yaml:"min_docs_in_leaf" validate:"gte=1"`
	MaxBins       int `yaml:"max_bins" validate:"gte=2"`

	LearningRate    float64 `yaml:"learning_rate" validate:"gt=0"`
	Shrinkage       float64 `yaml:"shrinkage" validate:"gt=0"`
	MaxTreeOutput   float64 `yaml:"max_tree_output" validate:"gt=0"`
	FeatureFraction float64 `yaml:"feature_fraction" validate:"gt=0,lte=1"`
	Smoothing       float64 `yaml:"smoothing" validate:"gte=0,lt=1"`
	DropoutRate     float64 `yaml:"dropout_rate" validate:"gte=0,lt=1"`

	OptimizationAlgorithm AlgorithmKind `yaml:"optimization_algorithm"`
	// BestStepTrees fits Newton steps −g/h weighted by h instead of the
	// negative gradient.
	BestStepTrees      bool    `yaml:"best_step_trees"`
	UseLineSearch      bool    `yaml:"use_line_search"`
	MaxLineSearchSteps int     `yaml:"max_line_search_steps" validate:"gte=0"`
	MinStepSize        float64 `yaml:"min_step_size" validate:"gte=0"`

	EnablePruning      bool    `yaml:"enable_pruning"`
	UseTolerantPruning bool    `yaml:"use_tolerant_pruning"`
	PruningThreshold   float64 `yaml:"pruning_threshold" validate:"gte=0"`
	PruningWindowSize  int     `yaml:"pruning_window_size" validate:"gte=1"`
	WriteLastEnsemble  bool    `yaml:"write_last_ensemble"`

	// TestFrequency computes tests every that many iterations; 0 disables.
	TestFrequency        int  `yaml:"test_frequency" validate:"gte=0"`
	PrintTrainValidGraph bool `yaml:"print_train_valid_graph"`

	EarlyStoppingRule EarlyStoppingRuleFactory `yaml:"-"`

	RandomSeed uint64 `yaml:"random_seed"`
	NumThreads int    `yaml:"num_threads" validate:"gte=0"`
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		NumTrees:           100,
		NumLeaves:          20,
		MinDocsInLeaf:      10,
		MaxBins:            255,
		LearningRate:       0.2,
		Shrinkage:          1,
		MaxTreeOutput:      100,
		FeatureFraction:    1,
		MaxLineSearchSteps: 20,
		MinStepSize:        1e-6,
		PruningThreshold:   0.004,
		PruningWindowSize:  5,
		RandomSeed:         123,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckArgs validates ranges and option dependencies. hasValidSet reports
// whether a validation dataset will be supplied. It normalizes o in place:
// accelerated and conjugate descent force line search, and dropout sets
// Shrinkage to 1/LearningRate.
func (o *Options) CheckArgs(hasValidSet bool) error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if ftErrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			reason := fe.Tag()
			if fe.Param() != "" {
				reason = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
			}
			return ftErrors.NewValidationError(fe.Field(), reason, fe.Value())
		}
		return ftErrors.Wrap(err, "validating options")
	}

	if o.EnablePruning && !hasValidSet {
		return ftErrors.NewValidationError("EnablePruning", "pruning requires a validation set", o.EnablePruning)
	}
	if o.EarlyStoppingRule != nil && !hasValidSet {
		return ftErrors.NewValidationError("EarlyStoppingRule", "early stopping requires a validation set", "set")
	}
	if o.UseTolerantPruning && (!o.EnablePruning || !hasValidSet) {
		return ftErrors.NewValidationError("UseTolerantPruning", "tolerant pruning requires pruning and a validation set", o.UseTolerantPruning)
	}

	logger := log.GetLoggerWithName("fasttree.options")
	if o.OptimizationAlgorithm != GradientDescent && !o.UseLineSearch {
		logger.Info("Line search enabled", "algorithm", o.OptimizationAlgorithm.String())
		o.UseLineSearch = true
	}
	if o.DropoutRate > 0 {
		o.Shrinkage = 1 / o.LearningRate
		logger.Info("Shrinkage overridden for dropout", log.ShrinkageKey, o.Shrinkage)
	}
	return nil
}
