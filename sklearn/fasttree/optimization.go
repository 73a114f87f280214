package fasttree

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/TomFinley/machinelearning/core/parallel"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
)

// AlgorithmKind selects how the per-iteration descent direction is built.
type AlgorithmKind int

const (
	GradientDescent AlgorithmKind = iota
	AcceleratedGradientDescent
	ConjugateGradientDescent
)

func (k AlgorithmKind) String() string {
	switch k {
	case GradientDescent:
		return "gd"
	case AcceleratedGradientDescent:
		return "agd"
	case ConjugateGradientDescent:
		return "cgd"
	default:
		return fmt.Sprintf("AlgorithmKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k AlgorithmKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts the short and long names of each kind.
func (k *AlgorithmKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "gd", "gradientdescent", "gradient_descent", "":
		*k = GradientDescent
	case "agd", "acceleratedgradientdescent", "accelerated_gradient_descent":
		*k = AcceleratedGradientDescent
	case "cgd", "conjugategradientdescent", "conjugate_gradient_descent":
		*k = ConjugateGradientDescent
	default:
		return ftErrors.NewValidationError("OptimizationAlgorithm", "must be gd, agd or cgd", string(text))
	}
	return nil
}

// directionStrategy maps the fitted targets of an iteration to the
// direction the tree is fitted to.
type directionStrategy interface {
	Direction(targets []float64) []float64
}

type gdDirection struct{}

func (gdDirection) Direction(targets []float64) []float64 { return targets }

// agdDirection applies Nesterov momentum d_t = g_t + (t−1)/(t+2)·d_{t−1}.
type agdDirection struct {
	t    int
	prev []float64
}

func (a *agdDirection) Direction(targets []float64) []float64 {
	a.t++
	if a.prev == nil {
		a.prev = slices.Clone(targets)
		return a.prev
	}
	beta := float64(a.t-1) / float64(a.t+2)
	floats.Scale(beta, a.prev)
	floats.Add(a.prev, targets)
	return a.prev
}

// cgdDirection is Polak–Ribière conjugate gradient, restarted whenever β
// would be negative.
type cgdDirection struct {
	prevGrad []float64
	prevDir  []float64
	diff     []float64
}

func (c *cgdDirection) Direction(targets []float64) []float64 {
	if c.prevGrad == nil {
		c.prevGrad = slices.Clone(targets)
		c.prevDir = slices.Clone(targets)
		c.diff = make([]float64, len(targets))
		return c.prevDir
	}
	beta := 0.0
	if denom := floats.Dot(c.prevGrad, c.prevGrad); denom > 0 {
		floats.SubTo(c.diff, targets, c.prevGrad)
		beta = max(0, floats.Dot(targets, c.diff)/denom)
	}
	floats.Scale(beta, c.prevDir)
	floats.Add(c.prevDir, targets)
	copy(c.prevGrad, targets)
	return c.prevDir
}

func newDirectionStrategy(kind AlgorithmKind) directionStrategy {
	switch kind {
	case AcceleratedGradientDescent:
		return &agdDirection{}
	case ConjugateGradientDescent:
		return &cgdDirection{}
	default:
		return gdDirection{}
	}
}

// OptimizationAlgorithm runs one boosting iteration at a time: gradients,
// tree fit, leaf adjustment, dropout and score updates.
type OptimizationAlgorithm struct {
	Kind           AlgorithmKind
	Ensemble       *Ensemble
	TrainingScores *ScoreTracker
	Objective      ObjectiveFunction
	Learner        TreeLearner
	Wrapper        GradientWrapper

	// Adjuster replaces the objective's AdjustTreeOutputs when set.
	Adjuster  TreeOutputAdjuster
	Smoothing float64

	DropoutRate float64
	DropoutSeed uint64

	// PreScoreUpdate is called after the new tree is final and before any
	// score tracker changes.
	PreScoreUpdate func()

	trackers  []*ScoreTracker
	direction directionStrategy
	iteration int
	workers   int
	logger    log.Logger
}

// NewOptimizationAlgorithm wires the pieces of the boosting loop. The
// training tracker is always updated; further trackers are added with
// TrackScores.
func NewOptimizationAlgorithm(kind AlgorithmKind, ensemble *Ensemble, training *ScoreTracker,
	objective ObjectiveFunction, learner TreeLearner, wrapper GradientWrapper) *OptimizationAlgorithm {
	return &OptimizationAlgorithm{
		Kind:           kind,
		Ensemble:       ensemble,
		TrainingScores: training,
		Objective:      objective,
		Learner:        learner,
		Wrapper:        wrapper,
		direction:      newDirectionStrategy(kind),
		workers:        training.workers,
		logger:         log.GetLoggerWithName("fasttree.optimizer"),
	}
}

// TrackScores registers a tracker kept in sync with the ensemble.
func (o *OptimizationAlgorithm) TrackScores(t *ScoreTracker) {
	if t == nil || t == o.TrainingScores || slices.Contains(o.trackers, t) {
		return
	}
	o.trackers = append(o.trackers, t)
}

// Trackers returns every tracker updated by the algorithm, training first.
func (o *OptimizationAlgorithm) Trackers() []*ScoreTracker {
	return append([]*ScoreTracker{o.TrainingScores}, o.trackers...)
}

// TrainingIteration fits one tree using the features marked in
// activeFeatures and appends it to the ensemble. It returns nil, nil when
// the learner produced no tree.
func (o *OptimizationAlgorithm) TrainingIteration(activeFeatures []bool) (*RegressionTree, error) {
	iter := o.iteration
	o.iteration++

	scores, err := o.TrainingScores.Scores()
	if err != nil {
		return nil, err
	}
	data := o.TrainingScores.Dataset()

	dropped := o.selectDropped(iter)
	if len(dropped) > 0 {
		scores = o.scoresWithout(dropped, scores)
	}

	grads, err := o.Objective.GetGradient(scores)
	if err != nil {
		return nil, err
	}
	if err := ftErrors.CheckNumericalStability("gradient", grads, iter); err != nil {
		return nil, err
	}
	var hess []float64
	if o.Wrapper.NeedsHessians() {
		hess = o.Objective.Hessians()
	}
	targets, weights, err := o.Wrapper.AdjustTargetsAndSetWeights(grads, hess, data.SampleWeights())
	if err != nil {
		return nil, err
	}
	targets = o.direction.Direction(targets)

	tree, partitioning, err := o.Learner.FitTargets(activeFeatures, targets, weights)
	if err != nil {
		return nil, ftErrors.Wrapf(err, "fitting tree %d", iter)
	}
	if tree == nil {
		return nil, nil
	}

	adjuster := o.Adjuster
	if adjuster == nil {
		adjuster = o.Objective
	}
	if err := adjuster.AdjustTreeOutputs(tree, partitioning, scores); err != nil {
		return nil, err
	}
	if o.Smoothing != 0 {
		tree.SmoothLeafOutputs(o.Smoothing)
	}

	if len(dropped) > 0 {
		o.rescaleDropped(tree, dropped)
	}

	if o.PreScoreUpdate != nil {
		o.PreScoreUpdate()
	}
	o.TrainingScores.AddScoresFromPartition(tree, partitioning, 1)
	for _, t := range o.trackers {
		t.AddScores(tree, 1)
	}
	o.Ensemble.AddTree(tree)
	return tree, nil
}

// selectDropped drops each existing tree with probability DropoutRate and
// at least one tree when the ensemble is not empty.
func (o *OptimizationAlgorithm) selectDropped(iteration int) []int {
	n := o.Ensemble.NumTrees()
	if o.DropoutRate <= 0 || n == 0 {
		return nil
	}
	// G404: Using math/rand for ML sampling (not cryptographic purposes)
	r := rand.New(rand.NewPCG(o.DropoutSeed, o.DropoutSeed+uint64(iteration)))
	var dropped []int
	for i := 0; i < n; i++ {
		if r.Float64() < o.DropoutRate {
			dropped = append(dropped, i)
		}
	}
	if len(dropped) == 0 {
		dropped = append(dropped, r.IntN(n))
	}
	return dropped
}

func (o *OptimizationAlgorithm) scoresWithout(dropped []int, scores []float64) []float64 {
	data := o.TrainingScores.Dataset()
	out := slices.Clone(scores)
	parallel.ParallelizeN(len(out), o.workers, func(start, end int) {
		for i := start; i < end; i++ {
			row := data.Row(i)
			for _, t := range dropped {
				out[i] -= o.Ensemble.Tree(t).Predict(row)
			}
		}
	})
	return out
}

// rescaleDropped scales the new tree by 1/(k+1) and every dropped tree by
// k/(k+1), correcting all trackers for the dropped trees' change.
func (o *OptimizationAlgorithm) rescaleDropped(tree *RegressionTree, dropped []int) {
	k := float64(len(dropped))
	coeff := 1 / (k + 1)
	tree.ScaleOutputs(coeff)
	trackers := o.Trackers()
	for _, i := range dropped {
		t := o.Ensemble.Tree(i)
		for _, tr := range trackers {
			tr.AddScores(t, -coeff)
		}
		t.ScaleOutputs(k * coeff)
	}
	o.logger.Debug("Dropout", log.IterationKey, o.iteration-1, log.DroppedTreesKey, len(dropped))
}
