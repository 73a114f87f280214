package fasttree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoLevelTree splits feature 0 at 1, then sends categories {2, 5} of
// feature 1 left on the GT side.
func twoLevelTree() *RegressionTree {
	tree := NewRegressionTree()
	tree.split(0, 0, 1, nil, 1, 10, 0, 2, 3)
	tree.split(1, 1, math.NaN(), []int{5, 2}, 1, 20, 30, 1, 2)
	return tree
}

func TestRegressionTreeRouting(t *testing.T) {
	tree := twoLevelTree()
	require.Equal(t, 3, tree.NumLeaves())
	require.Equal(t, 2, tree.NumNodes())
	assert.Equal(t, []int{2, 5}, tree.CategoricalValues[1], "categories are stored sorted")

	tests := []struct {
		row  []float64
		leaf int
	}{
		{[]float64{0.5, 0}, 0},
		{[]float64{1, 0}, 0},
		{[]float64{math.NaN(), 5}, 1},
		{[]float64{2, 2}, 1},
		{[]float64{2, 3}, 2},
		{[]float64{2, math.NaN()}, 2},
		{[]float64{math.Inf(1), 5}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.leaf, tree.GetLeaf(tt.row), "row %v", tt.row)
		assert.Equal(t, tree.LeafValues[tt.leaf], tree.Predict(tt.row))
	}
}

func TestRegressionTreeSplitIndices(t *testing.T) {
	tree := NewRegressionTree()
	assert.Equal(t, 1, tree.split(0, 0, 0.5, nil, 1, 0, 0, 1, 1))
	assert.Equal(t, 2, tree.split(0, 0, 0.25, nil, 1, 0, 0, 1, 1))
	// leaf 0 moved under node 1, which hangs off node 0's LTE side
	assert.Equal(t, 1, tree.LteChild[0])
	assert.Equal(t, ^1, tree.GtChild[0])
	assert.Equal(t, ^0, tree.LteChild[1])
	assert.Equal(t, ^2, tree.GtChild[1])
}

func TestRegressionTreeOutputs(t *testing.T) {
	tree := twoLevelTree()
	clone := tree.Clone()

	tree.ScaleOutputs(-0.5)
	assert.Equal(t, []float64{-5, -10, -15}, tree.LeafValues)
	assert.Equal(t, 15.0, tree.MaxAbsOutput())
	assert.Equal(t, []float64{10, 20, 30}, clone.LeafValues, "clone is independent")

	clone.CategoricalValues[1][0] = 99
	assert.Equal(t, 2, tree.CategoricalValues[1][0])
}

func TestSmoothLeafOutputs(t *testing.T) {
	tree := NewRegressionTree()
	tree.split(0, 0, 0.5, nil, 1, 0, 4, 1, 3)

	tree.SmoothLeafOutputs(0.5)
	// the root mean is (0·1 + 4·3) / 4 = 3
	assert.InDeltaSlice(t, []float64{1.5, 3.5}, tree.LeafValues, 1e-12)

	single := NewRegressionTree()
	single.SetOutput(0, 7)
	single.SmoothLeafOutputs(0.9)
	assert.Equal(t, 7.0, single.LeafValue(0))
}

func TestEnsemble(t *testing.T) {
	e := NewEnsemble()
	for i := 1; i <= 3; i++ {
		tree := NewRegressionTree()
		tree.SetOutput(0, float64(i))
		e.AddTree(tree)
	}
	assert.Equal(t, 6.0, e.RawScore([]float64{0}))

	X := mat.NewDense(2, 1, []float64{0, 1})
	assert.Equal(t, []float64{6, 6}, e.RawScores(X))

	e.RemoveAfter(1)
	assert.Equal(t, 1, e.NumTrees())
	assert.Equal(t, 1.0, e.RawScore([]float64{0}))
	e.RemoveAfter(5)
	assert.Equal(t, 1, e.NumTrees())
}

func TestDocumentPartitioning(t *testing.T) {
	tree, p := stump(0.5, []int{3, 0}, []int{1, 2, 4})
	tree.SetOutput(0, -1)
	tree.SetOutput(1, 2)

	assert.Equal(t, 2, p.NumLeaves())
	assert.Equal(t, 5, p.NumDocs())
	assert.ElementsMatch(t, []int{0, 3}, p.DocumentsInLeaf(0))
	assert.ElementsMatch(t, []int{1, 2, 4}, p.DocumentsInLeaf(1))
	assert.Equal(t, []float64{-1, 2, 2, -1, 2, 0}, p.LeafOutputs(tree, 6))
}
