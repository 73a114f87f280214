package fasttree

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
)

// trainerDelegate supplies the loss-specific parts of a boosting trainer.
type trainerDelegate interface {
	name() string
	predictionKind() PredictionKind
	newObjective(train *Dataset, opts ObjectiveOptions) (ObjectiveFunction, error)
	newTest(tracker *ScoreTracker) Test
}

// GraphPoint is one point of the learning curve: the first metric of the
// training and validation tests after Iteration trees. Valid is NaN when
// there is no validation set.
type GraphPoint struct {
	Iteration int
	Metric    string
	Train     float64
	Valid     float64
}

// TrainingResult is what a successful Fit returns.
type TrainingResult struct {
	Predictor *Predictor
	// BestIteration is the number of trees kept.
	BestIteration int
	// Iterations is the number of trees trained before truncation.
	Iterations   int
	EarlyStopped bool
	EmptyTrees   int
	History      []GraphPoint
}

// BoostingTrainer runs the boosting loop shared by all FastTree trainers.
type BoostingTrainer struct {
	Options Options

	// PreScoreUpdate, when set, is called once per iteration after the new
	// tree is final and before any scores change.
	PreScoreUpdate func()

	delegate trainerDelegate
	logger   log.Logger
}

func newBoostingTrainer(opts Options, d trainerDelegate) BoostingTrainer {
	return BoostingTrainer{
		Options:  opts,
		delegate: d,
		logger:   log.GetLoggerWithName("fasttree.boosting").With(log.ModelNameKey, d.name()),
	}
}

// trainState lives for the duration of one Fit call.
type trainState struct {
	opts Options

	train *Dataset
	valid *Dataset
	tests []*Dataset

	ensemble  *Ensemble
	objective ObjectiveFunction
	optimizer *OptimizationAlgorithm

	trainScores *ScoreTracker
	validScores *ScoreTracker

	Tests       []Test
	TrainTest   Test
	ValidTest   Test
	PruningTest PruningTest

	rule          EarlyStoppingRule
	bestIteration int
	earlyStopped  bool
	emptyTrees    int

	featureRng *rand.Rand
	history    []GraphPoint
}

func (b *BoostingTrainer) fit(ctx context.Context, train, valid *Dataset, tests []*Dataset) (res *TrainingResult, err error) {
	defer ftErrors.Recover(&err, b.delegate.name()+".Fit")

	if train == nil || train.NumDocs() == 0 {
		return nil, ftErrors.WithStack(ftErrors.ErrEmptyData)
	}
	for _, ds := range append([]*Dataset{valid}, tests...) {
		if ds != nil && ds.NumFeatures() != train.NumFeatures() {
			return nil, ftErrors.NewDimensionError(b.delegate.name()+".Fit", train.NumFeatures(), ds.NumFeatures(), 1)
		}
	}

	opts := b.Options
	if err := opts.CheckArgs(valid != nil); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := b.logger
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, train.NumDocs(),
		log.FeaturesKey, train.NumFeatures(),
		log.QueriesKey, train.NumQueries(),
		log.TreesKey, opts.NumTrees,
		log.LeavesKey, opts.NumLeaves,
		log.LearningRateKey, opts.LearningRate,
		log.ShrinkageKey, opts.Shrinkage,
		log.RandomSeedKey, opts.RandomSeed,
	)

	st := &trainState{
		opts:     opts,
		train:    train,
		valid:    valid,
		tests:    tests,
		ensemble: NewEnsemble(),
	}
	st.trainScores, err = NewScoreTracker("train", train, nil, opts.NumThreads)
	if err != nil {
		return nil, err
	}
	if err := b.constructOptimizationAlgorithm(st); err != nil {
		return nil, err
	}
	if err := b.initializeTests(st); err != nil {
		return nil, err
	}

	if err := b.train(ctx, st); err != nil {
		return nil, err
	}

	iterations := st.ensemble.NumTrees()
	best := b.getBestIteration(st)
	if best < iterations {
		st.ensemble.RemoveAfter(best)
		logger.Info("Ensemble truncated", log.TreesKey, iterations, log.BestIterKey, best)
	}
	if len(st.Tests) > 0 {
		final, err := b.computeTests(st)
		if err != nil {
			return nil, err
		}
		for name, results := range final {
			for _, r := range results {
				logger.Debug("Final metric", log.DatasetKey, name, log.MetricKey, r.Name, log.MetricValueKey, r.Value)
			}
		}
	}
	if st.emptyTrees > 0 {
		ftErrors.Warn(ftErrors.NewConvergenceWarning(b.delegate.name(), iterations,
			fmt.Sprintf("%d iteration(s) produced no tree", st.emptyTrees)))
	}

	logger.Info("Training finished",
		log.TreesKey, st.ensemble.NumTrees(),
		log.BestIterKey, best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &TrainingResult{
		Predictor:     NewPredictor(st.ensemble, b.delegate.predictionKind(), train.NumFeatures(), train.FeatureNames),
		BestIteration: best,
		Iterations:    iterations,
		EarlyStopped:  st.earlyStopped,
		EmptyTrees:    st.emptyTrees,
		History:       st.history,
	}, nil
}

func (b *BoostingTrainer) train(ctx context.Context, st *trainState) error {
	target := st.opts.NumTrees
	for st.ensemble.NumTrees() < target {
		if err := ctx.Err(); err != nil {
			return ftErrors.Wrapf(err, "training stopped after %d trees", st.ensemble.NumTrees())
		}

		tree, err := st.optimizer.TrainingIteration(st.activeFeatures())
		if err != nil {
			return err
		}
		if tree == nil {
			st.emptyTrees++
			target--
			continue
		}
		iter := st.ensemble.NumTrees()

		if st.PruningTest != nil {
			if err := st.PruningTest.Update(iter); err != nil {
				return err
			}
		}
		stop, err := b.checkEarlyStopping(st)
		if err != nil {
			return err
		}
		if st.opts.PrintTrainValidGraph || (st.opts.TestFrequency > 0 && iter%st.opts.TestFrequency == 0) {
			line, err := b.testGraphLine(st)
			if err != nil {
				return err
			}
			b.logger.Info(line, log.IterationKey, iter)
		}
		if stop {
			st.earlyStopped = true
			b.logger.Info("Early stopping", log.IterationKey, iter, log.BestIterKey, st.bestIteration)
			break
		}
	}
	return nil
}

// constructOptimizationAlgorithm builds the objective, the tree learner and
// the boosting loop for st.
func (b *BoostingTrainer) constructOptimizationAlgorithm(st *trainState) error {
	opts := st.opts
	objective, err := b.delegate.newObjective(st.train, ObjectiveOptions{
		LearningRate:    opts.LearningRate,
		Shrinkage:       opts.Shrinkage,
		MaxTreeOutput:   opts.MaxTreeOutput,
		NumThreads:      opts.NumThreads,
		ComputeHessians: opts.BestStepTrees,
	})
	if err != nil {
		return err
	}
	st.objective = objective

	learner := NewLeastSquaresTreeLearner(st.train, TreeLearnerOptions{
		NumLeaves:     opts.NumLeaves,
		MinDocsInLeaf: opts.MinDocsInLeaf,
		MaxBins:       opts.MaxBins,
		NumThreads:    opts.NumThreads,
	})
	var wrapper GradientWrapper = &trivialGradientWrapper{}
	if opts.BestStepTrees {
		wrapper = &bestStepGradientWrapper{maxTreeOutput: opts.MaxTreeOutput}
	}

	opt := NewOptimizationAlgorithm(opts.OptimizationAlgorithm, st.ensemble, st.trainScores, objective, learner, wrapper)
	if opts.UseLineSearch {
		opt.Adjuster = &LineSearch{
			Objective:     objective,
			LearningRate:  opts.LearningRate,
			Shrinkage:     opts.Shrinkage,
			MaxTreeOutput: opts.MaxTreeOutput,
			MaxSteps:      opts.MaxLineSearchSteps,
			MinStepSize:   opts.MinStepSize,
		}
	}
	opt.Smoothing = opts.Smoothing
	opt.DropoutRate = opts.DropoutRate
	opt.DropoutSeed = opts.RandomSeed
	opt.PreScoreUpdate = b.PreScoreUpdate
	st.optimizer = opt
	return nil
}

// initializeTests creates only the trackers and tests that something will
// read: periodic tests, the train/valid graph, early stopping or pruning.
func (b *BoostingTrainer) initializeTests(st *trainState) error {
	opts := st.opts
	periodic := opts.TestFrequency > 0 || opts.PrintTrainValidGraph
	stopping := opts.EarlyStoppingRule != nil

	if periodic || stopping {
		st.TrainTest = b.delegate.newTest(st.trainScores)
		st.Tests = append(st.Tests, st.TrainTest)
	}

	if st.valid != nil && (periodic || stopping || opts.EnablePruning) {
		tracker, err := NewScoreTracker(st.valid.displayName("valid"), st.valid, nil, opts.NumThreads)
		if err != nil {
			return err
		}
		st.validScores = tracker
		st.optimizer.TrackScores(tracker)
		st.ValidTest = b.delegate.newTest(tracker)
		st.Tests = append(st.Tests, st.ValidTest)

		if opts.EnablePruning {
			// pruning follows L1, the first regression metric
			if opts.UseTolerantPruning {
				st.PruningTest = NewTestWindowWithTolerance(st.ValidTest, 0, opts.PruningWindowSize, opts.PruningThreshold)
			} else {
				st.PruningTest = NewTestHistory(st.ValidTest, 0)
			}
		}
	}

	if periodic {
		for i, ds := range st.tests {
			tracker, err := NewScoreTracker(ds.displayName(fmt.Sprintf("test%d", i)), ds, nil, opts.NumThreads)
			if err != nil {
				return err
			}
			st.optimizer.TrackScores(tracker)
			st.Tests = append(st.Tests, b.delegate.newTest(tracker))
		}
	}
	return nil
}

// checkEarlyStopping builds the rule on first use, with the direction of
// the first validation metric, and feeds it the latest scores.
func (b *BoostingTrainer) checkEarlyStopping(st *trainState) (bool, error) {
	if st.opts.EarlyStoppingRule == nil || st.ValidTest == nil {
		return false, nil
	}
	valid, err := st.ValidTest.ComputeTests()
	if err != nil {
		return false, err
	}
	train, err := st.TrainTest.ComputeTests()
	if err != nil {
		return false, err
	}
	if st.rule == nil {
		st.rule = st.opts.EarlyStoppingRule(valid[0].LowerIsBetter)
	}
	stop, isBest := st.rule.CheckScore(valid[0].Value, train[0].Value)
	if isBest {
		st.bestIteration = st.ensemble.NumTrees()
	}
	return stop, nil
}

// computeTests evaluates every test of st, keyed by test name.
func (b *BoostingTrainer) computeTests(st *trainState) (map[string][]TestResult, error) {
	out := make(map[string][]TestResult, len(st.Tests))
	for _, t := range st.Tests {
		r, err := t.ComputeTests()
		if err != nil {
			return nil, err
		}
		out[t.Name()] = r
	}
	return out, nil
}

// testGraphLine formats the current metrics of every test on one line
// and appends the train/valid point to the learning curve.
func (b *BoostingTrainer) testGraphLine(st *trainState) (string, error) {
	iter := st.ensemble.NumTrees()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Iteration %d:", iter)
	point := GraphPoint{Iteration: iter, Train: math.NaN(), Valid: math.NaN()}
	for _, t := range st.Tests {
		results, err := t.ComputeTests()
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + t.Name())
		for _, r := range results {
			fmt.Fprintf(&sb, " %s=%.6g", r.Name, r.Value)
		}
		switch t {
		case st.TrainTest:
			point.Metric, point.Train = results[0].Name, results[0].Value
		case st.ValidTest:
			point.Metric, point.Valid = results[0].Name, results[0].Value
		}
	}
	st.history = append(st.history, point)
	return sb.String(), nil
}

// getBestIteration is the number of trees to keep.
func (b *BoostingTrainer) getBestIteration(st *trainState) int {
	n := st.ensemble.NumTrees()
	if st.opts.WriteLastEnsemble {
		return n
	}
	if st.PruningTest != nil {
		if best := st.PruningTest.BestIteration(); best > 0 {
			return min(best, n)
		}
		return n
	}
	if st.rule != nil {
		// the rule's best iteration holds whether or not it stopped training
		return min(max(st.bestIteration, 1), n)
	}
	return n
}

// activeFeatures draws the features usable in this iteration, or nil when
// all are.
func (st *trainState) activeFeatures() []bool {
	if st.opts.FeatureFraction >= 1 {
		return nil
	}
	if st.featureRng == nil {
		// G404: Using math/rand for ML sampling (not cryptographic purposes)
		st.featureRng = rand.New(rand.NewPCG(st.opts.RandomSeed, st.opts.RandomSeed))
	}
	nf := st.train.NumFeatures()
	active := make([]bool, nf)
	picked := false
	for f := range active {
		if st.featureRng.Float64() < st.opts.FeatureFraction {
			active[f], picked = true, true
		}
	}
	if !picked && nf > 0 {
		active[st.featureRng.IntN(nf)] = true
	}
	return active
}
