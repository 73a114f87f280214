package fasttree

import (
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// RegressionObjective is the squared error loss ½(s−y)².
type RegressionObjective struct {
	objectiveBase
}

// NewRegressionObjective builds the squared error objective over data.
func NewRegressionObjective(data *Dataset, opts ObjectiveOptions) *RegressionObjective {
	return &RegressionObjective{objectiveBase: newObjectiveBase(data, data.Targets(), opts)}
}

// GetGradient implements ObjectiveFunction.
func (o *RegressionObjective) GetGradient(scores []float64) ([]float64, error) {
	return o.computeGradients(o, scores)
}

func (o *RegressionObjective) gradientInOneQuery(query int, scores []float64) {
	begin, end := o.data.QueryRange(query)
	for i := begin; i < end; i++ {
		o.gradients[i] = scores[i] - o.targets[i]
		if o.hessians != nil {
			o.hessians[i] = 1
		}
	}
}

// AdjustTreeOutputs scales the fitted leaf means by
// learningRate·shrinkage and clamps them.
func (o *RegressionObjective) AdjustTreeOutputs(tree *RegressionTree, partitioning *DocumentPartitioning, _ []float64) error {
	if partitioning.NumLeaves() != tree.NumLeaves() {
		return ftErrors.NewDimensionError("AdjustTreeOutputs", tree.NumLeaves(), partitioning.NumLeaves(), 0)
	}
	mult := o.stepMultiplier()
	for l := 0; l < tree.NumLeaves(); l++ {
		tree.SetOutput(l, o.clampStep(mult*tree.LeafValue(l)))
	}
	return nil
}

// Loss implements ObjectiveFunction.
func (o *RegressionObjective) Loss(scores []float64) float64 {
	return o.weightedMean(func(i int) float64 {
		d := scores[i] - o.targets[i]
		return 0.5 * d * d
	})
}
