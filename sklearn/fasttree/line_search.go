package fasttree

import (
	"math"

	"gonum.org/v1/gonum/floats"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

const invPhi = 0.6180339887498949 // (√5 − 1) / 2

// LineSearch is a TreeOutputAdjuster that scales a fitted tree by the
// multiplier α minimizing the training loss at scores + α·tree, found by
// golden-section search, before applying shrinkage and the output clamp.
type LineSearch struct {
	Objective     ObjectiveFunction
	LearningRate  float64
	Shrinkage     float64
	MaxTreeOutput float64
	MaxSteps      int
	MinStepSize   float64

	buf []float64
}

// AdjustTreeOutputs implements TreeOutputAdjuster.
func (ls *LineSearch) AdjustTreeOutputs(tree *RegressionTree, partitioning *DocumentPartitioning, scores []float64) error {
	alpha, err := ls.Search(tree, partitioning, scores)
	if err != nil {
		return err
	}
	mult := alpha * ls.LearningRate * ls.Shrinkage
	c := math.Abs(ls.MaxTreeOutput)
	for l := 0; l < tree.NumLeaves(); l++ {
		tree.SetOutput(l, math.Max(-c, math.Min(c, mult*tree.LeafValue(l))))
	}
	return nil
}

// Search returns the loss-minimizing multiplier of the tree's raw leaf
// values, or 0 when no positive multiplier improves on the current loss.
func (ls *LineSearch) Search(tree *RegressionTree, partitioning *DocumentPartitioning, scores []float64) (float64, error) {
	outputs := partitioning.LeafOutputs(tree, len(scores))
	if len(ls.buf) != len(scores) {
		ls.buf = make([]float64, len(scores))
	}
	loss := func(alpha float64) float64 {
		floats.AddScaledTo(ls.buf, scores, alpha, outputs)
		l := ls.Objective.Loss(ls.buf)
		if math.IsNaN(l) {
			return math.Inf(1)
		}
		return l
	}

	steps := ls.MaxSteps
	if steps <= 0 {
		steps = 20
	}
	f0 := loss(0)
	if err := ftErrors.CheckScalar("line search loss", f0, 0); err != nil {
		return 0, err
	}

	// Grow the bracket while the loss keeps decreasing.
	hi, fhi := 1.0, loss(1)
	for i := 0; i < steps; i++ {
		next := loss(2 * hi)
		if !(next < fhi) {
			break
		}
		hi, fhi = 2*hi, next
	}
	lo, up := 0.0, 2*hi
	if fhi >= f0 {
		up = hi
	}

	best, fbest := 0.0, f0
	if fhi < fbest {
		best, fbest = hi, fhi
	}
	x1 := up - invPhi*(up-lo)
	x2 := lo + invPhi*(up-lo)
	f1, f2 := loss(x1), loss(x2)
	for i := 0; i < steps && up-lo > ls.MinStepSize; i++ {
		if f1 < f2 {
			up, x2, f2 = x2, x1, f1
			x1 = up - invPhi*(up-lo)
			f1 = loss(x1)
		} else {
			lo, x1, f1 = x1, x2, f2
			x2 = lo + invPhi*(up-lo)
			f2 = loss(x2)
		}
	}
	for _, p := range [...]struct{ x, f float64 }{{x1, f1}, {x2, f2}} {
		if p.f < fbest {
			best, fbest = p.x, p.f
		}
	}
	return best, nil
}
