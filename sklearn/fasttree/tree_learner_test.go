package fasttree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLeastSquaresTreeLearnerStep(t *testing.T) {
	xs := make([]float64, 10)
	targets := make([]float64, 10)
	for i := range xs {
		xs[i] = float64(i)
		if i >= 5 {
			targets[i] = 10
		}
	}
	ds := newColumnDataset(t, xs, targets)
	learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 2, MinDocsInLeaf: 1, MaxBins: 255})

	tree, p, err := learner.FitTargets(nil, targets, nil)
	require.NoError(t, err)
	require.Equal(t, 2, tree.NumLeaves())
	assert.Equal(t, 4.5, tree.Threshold[0])
	assert.Equal(t, []float64{0, 10}, tree.LeafValues)
	assert.Equal(t, []int{5, 5}, tree.LeafCounts)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, p.DocumentsInLeaf(0))
}

func TestLeastSquaresTreeLearnerPartitionIsComplete(t *testing.T) {
	const n = 300
	r := rand.New(rand.NewPCG(7, 8))
	X := mat.NewDense(n, 3, nil)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		row := []float64{r.Float64(), r.NormFloat64(), float64(r.IntN(5))}
		if i%17 == 0 {
			row[0] = math.NaN()
		}
		X.SetRow(i, row)
		targets[i] = r.NormFloat64() + row[1]
	}
	ds, err := NewDataset(X, targets, WithCategoricalFeatures([]int{2}))
	require.NoError(t, err)

	for _, minDocs := range []int{1, 10} {
		learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 8, MinDocsInLeaf: minDocs, MaxBins: 16, NumThreads: 4})
		tree, p, err := learner.FitTargets(nil, targets, nil)
		require.NoError(t, err)
		require.Equal(t, tree.NumLeaves(), p.NumLeaves())
		assert.LessOrEqual(t, tree.NumLeaves(), 8)

		seen := make([]int, n)
		for l := 0; l < p.NumLeaves(); l++ {
			docs := p.DocumentsInLeaf(l)
			assert.GreaterOrEqual(t, len(docs), minDocs)
			assert.Equal(t, tree.LeafCounts[l], len(docs))
			for _, d := range docs {
				seen[d]++
				assert.Equal(t, l, tree.GetLeaf(ds.Row(d)), "doc %d routes to its partition leaf", d)
			}
		}
		for d, c := range seen {
			require.Equal(t, 1, c, "doc %d", d)
		}
	}
}

func TestLeastSquaresTreeLearnerConstantTargets(t *testing.T) {
	ds := newColumnDataset(t, []float64{0, 1, 2, 3}, []float64{2, 2, 2, 2})
	learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 4, MinDocsInLeaf: 1})

	tree, p, err := learner.FitTargets(nil, []float64{2, 2, 2, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NumLeaves())
	assert.Equal(t, 2.0, tree.LeafValue(0))
	assert.Len(t, p.DocumentsInLeaf(0), 4)
}

func TestLeastSquaresTreeLearnerCategorical(t *testing.T) {
	codes := []float64{0, 1, 2, 0, 1, 2, 1, math.NaN()}
	targets := []float64{0, 10, 0, 0, 10, 0, 10, 0}
	ds := newColumnDataset(t, codes, targets, WithCategoricalFeatures([]int{0}))
	learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 2, MinDocsInLeaf: 1})

	tree, _, err := learner.FitTargets(nil, targets, nil)
	require.NoError(t, err)
	require.Equal(t, 2, tree.NumLeaves())
	require.True(t, tree.CategoricalSplit[0])
	assert.Equal(t, []int{0, 2}, tree.CategoricalValues[0])
	assert.Equal(t, 0.0, tree.Predict([]float64{2}))
	// the GT side also holds the missing value
	assert.Equal(t, 7.5, tree.Predict([]float64{1}))
}

func TestLeastSquaresTreeLearnerActiveFeatures(t *testing.T) {
	rows := [][]float64{{0, 1}, {1, 0}, {2, 1}, {3, 0}}
	targets := []float64{0, 0, 5, 5}
	ds := newRowsDataset(t, rows, targets)
	learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 2, MinDocsInLeaf: 1})

	tree, _, err := learner.FitTargets(nil, targets, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.SplitFeature[0])

	tree, _, err = learner.FitTargets([]bool{false, true}, targets, nil)
	require.NoError(t, err)
	if tree.NumNodes() > 0 {
		assert.Equal(t, 1, tree.SplitFeature[0])
	}
}

func TestLeastSquaresTreeLearnerWeights(t *testing.T) {
	ds := newColumnDataset(t, []float64{0, 1}, []float64{0, 0})
	learner := NewLeastSquaresTreeLearner(ds, TreeLearnerOptions{NumLeaves: 2, MinDocsInLeaf: 1})

	_, _, err := learner.FitTargets(nil, []float64{1}, nil)
	assert.Error(t, err)

	tree, _, err := learner.FitTargets(nil, []float64{1, 4}, []float64{3, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, tree.LeafValues)
}
