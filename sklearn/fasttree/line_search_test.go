package fasttree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLineSearch(ds *Dataset, maxOutput float64) *LineSearch {
	obj := NewRegressionObjective(ds, ObjectiveOptions{LearningRate: 1, Shrinkage: 1, MaxTreeOutput: maxOutput, NumThreads: 1})
	return &LineSearch{
		Objective:     obj,
		LearningRate:  1,
		Shrinkage:     1,
		MaxTreeOutput: maxOutput,
		MaxSteps:      60,
		MinStepSize:   1e-7,
	}
}

func TestLineSearchFindsOptimalMultiplier(t *testing.T) {
	ds := newColumnDataset(t, []float64{0, 1, 2, 3}, []float64{1, 1, 3, 3})
	ls := newLineSearch(ds, 100)

	tree, p := stump(1.5, []int{0, 1}, []int{2, 3})
	// half of the least-squares optimum
	tree.SetOutput(0, 0.5)
	tree.SetOutput(1, 1.5)

	alpha, err := ls.Search(tree, p, make([]float64, 4))
	require.NoError(t, err)
	assert.InDelta(t, 2, alpha, 1e-5)

	require.NoError(t, ls.AdjustTreeOutputs(tree, p, make([]float64, 4)))
	assert.InDeltaSlice(t, []float64{1, 3}, tree.LeafValues, 1e-4)
}

func TestLineSearchRejectsAscentDirection(t *testing.T) {
	ds := newColumnDataset(t, []float64{0, 1}, []float64{1, 1})
	ls := newLineSearch(ds, 100)

	tree, p := stump(0.5, []int{0}, []int{1})
	tree.SetOutput(0, -1)
	tree.SetOutput(1, -1)
	require.NoError(t, ls.AdjustTreeOutputs(tree, p, []float64{0, 0}))
	assert.Equal(t, []float64{0, 0}, tree.LeafValues)
}

func TestLineSearchClampsOutputs(t *testing.T) {
	ds := newColumnDataset(t, []float64{0, 1}, []float64{10, 10})
	ls := newLineSearch(ds, 2)

	tree, p := stump(0.5, []int{0}, []int{1})
	tree.SetOutput(0, 1)
	tree.SetOutput(1, 1)
	require.NoError(t, ls.AdjustTreeOutputs(tree, p, []float64{0, 0}))
	assert.Equal(t, []float64{2, 2}, tree.LeafValues)
}
