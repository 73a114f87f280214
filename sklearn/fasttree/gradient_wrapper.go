package fasttree

import (
	"math"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// GradientWrapper turns objective derivatives into the regression targets
// and weights handed to the tree learner.
type GradientWrapper interface {
	AdjustTargetsAndSetWeights(gradients, hessians, sampleWeights []float64) (targets, weights []float64, err error)
	NeedsHessians() bool
}

// trivialGradientWrapper fits the negative gradient with the sample weights.
type trivialGradientWrapper struct {
	targets []float64
}

func (w *trivialGradientWrapper) NeedsHessians() bool { return false }

func (w *trivialGradientWrapper) AdjustTargetsAndSetWeights(gradients, _, sampleWeights []float64) ([]float64, []float64, error) {
	if len(w.targets) != len(gradients) {
		w.targets = make([]float64, len(gradients))
	}
	for i, g := range gradients {
		w.targets[i] = -g
	}
	return w.targets, sampleWeights, nil
}

const minHessian = 1e-12

// bestStepGradientWrapper fits the per-document Newton step −g/h, weighted
// by h times the sample weight, so leaf means are Newton steps for the leaf.
type bestStepGradientWrapper struct {
	maxTreeOutput float64
	targets       []float64
	weights       []float64
}

func (w *bestStepGradientWrapper) NeedsHessians() bool { return true }

func (w *bestStepGradientWrapper) AdjustTargetsAndSetWeights(gradients, hessians, sampleWeights []float64) ([]float64, []float64, error) {
	if hessians == nil {
		return nil, nil, ftErrors.NewModelError("AdjustTargetsAndSetWeights", "best step regression needs hessians", nil)
	}
	if len(w.targets) != len(gradients) {
		w.targets = make([]float64, len(gradients))
		w.weights = make([]float64, len(gradients))
	}
	c := math.Abs(w.maxTreeOutput)
	for i, g := range gradients {
		h := math.Max(hessians[i], minHessian)
		w.targets[i] = math.Max(-c, math.Min(c, -g/h))
		w.weights[i] = h * weightAt(sampleWeights, i)
	}
	return w.targets, w.weights, nil
}
