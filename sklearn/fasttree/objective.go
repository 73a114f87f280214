package fasttree

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/TomFinley/machinelearning/core/parallel"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// ObjectiveFunction computes the per-document gradient of a loss at the
// current scores and turns a fitted tree's leaves into loss-specific steps.
//
// GetGradient returns the derivative of the loss with respect to each score
// (not its negation). The returned slice is owned by the objective and is
// overwritten by the next call. Hessians returns the second derivatives of
// the last GetGradient call, or nil when the objective was built without
// them.
type ObjectiveFunction interface {
	TreeOutputAdjuster
	GetGradient(scores []float64) ([]float64, error)
	Hessians() []float64
	// Loss is the weighted mean loss at scores.
	Loss(scores []float64) float64
}

// TreeOutputAdjuster rewrites the leaf outputs of a freshly fitted tree.
// scores are the training scores the tree was fitted against.
type TreeOutputAdjuster interface {
	AdjustTreeOutputs(tree *RegressionTree, partitioning *DocumentPartitioning, scores []float64) error
}

// ObjectiveOptions holds the settings shared by all objectives.
type ObjectiveOptions struct {
	LearningRate    float64
	Shrinkage       float64
	MaxTreeOutput   float64
	NumThreads      int
	ComputeHessians bool
}

type queryGradienter interface {
	gradientInOneQuery(query int, scores []float64)
}

// objectiveBase holds what every objective shares and runs the per-query
// gradient computation over disjoint query ranges.
type objectiveBase struct {
	data    *Dataset
	targets []float64
	opts    ObjectiveOptions

	gradients []float64
	hessians  []float64
}

func newObjectiveBase(data *Dataset, targets []float64, opts ObjectiveOptions) objectiveBase {
	b := objectiveBase{
		data:      data,
		targets:   targets,
		opts:      opts,
		gradients: make([]float64, data.NumDocs()),
	}
	if opts.ComputeHessians {
		b.hessians = make([]float64, data.NumDocs())
	}
	return b
}

func (o *objectiveBase) computeGradients(impl queryGradienter, scores []float64) ([]float64, error) {
	if len(scores) != len(o.gradients) {
		return nil, ftErrors.NewDimensionError("GetGradient", len(o.gradients), len(scores), 0)
	}
	parallel.ParallelizeN(o.data.NumQueries(), o.opts.NumThreads, func(start, end int) {
		for q := start; q < end; q++ {
			impl.gradientInOneQuery(q, scores)
		}
	})
	return o.gradients, nil
}

// Hessians implements ObjectiveFunction.
func (o *objectiveBase) Hessians() []float64 { return o.hessians }

// clampStep bounds a leaf step to ±|MaxTreeOutput|.
func (o *objectiveBase) clampStep(step float64) float64 {
	c := math.Abs(o.opts.MaxTreeOutput)
	return math.Max(-c, math.Min(c, step))
}

func (o *objectiveBase) stepMultiplier() float64 {
	return o.opts.LearningRate * o.opts.Shrinkage
}

func (o *objectiveBase) weightedMean(loss func(i int) float64) float64 {
	weights := o.data.SampleWeights()
	if weights != nil && floats.Sum(weights) == 0 {
		return 0
	}
	losses := make([]float64, len(o.targets))
	for i := range losses {
		losses[i] = loss(i)
	}
	return stat.Mean(losses, weights)
}
