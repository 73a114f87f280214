package fasttree

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/TomFinley/machinelearning/pkg/log"
)

func newColumnDataset(t *testing.T, xs, ys []float64, opts ...DatasetOption) *Dataset {
	t.Helper()
	X := mat.NewDense(len(xs), 1, append([]float64(nil), xs...))
	ds, err := NewDataset(X, ys, opts...)
	require.NoError(t, err)
	return ds
}

func newRowsDataset(t *testing.T, rows [][]float64, ys []float64, opts ...DatasetOption) *Dataset {
	t.Helper()
	X := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		X.SetRow(i, r)
	}
	ds, err := NewDataset(X, ys, opts...)
	require.NoError(t, err)
	return ds
}

// syntheticCounts returns n rows of three features with non-negative
// labels whose mean is exp(0.6·x0 − 0.4·x1).
func syntheticCounts(t testing.TB, n int, seed uint64, name string) *Dataset {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, 3, nil)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		x0, x1, x2 := r.Float64()*2-1, r.Float64()*2-1, r.Float64()
		X.SetRow(i, []float64{x0, x1, x2})
		mu := math.Exp(0.6*x0 - 0.4*x1)
		ys[i] = math.Max(0, mu+0.2*r.NormFloat64())
	}
	ds, err := NewDataset(X, ys, WithName(name))
	require.NoError(t, err)
	return ds
}

// syntheticLinear returns labels 3·x0 − 2·x1 plus noise.
func syntheticLinear(t testing.TB, n int, seed uint64, name string) *Dataset {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, 2, nil)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		x0, x1 := r.Float64(), r.Float64()
		X.SetRow(i, []float64{x0, x1})
		ys[i] = 3*x0 - 2*x1 + 0.05*r.NormFloat64()
	}
	ds, err := NewDataset(X, ys, WithName(name))
	require.NoError(t, err)
	return ds
}

// captureLogs routes log records and warnings to a buffer for the duration
// of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetProvider(log.NewZerologProviderWithWriter(&buf, log.LevelDebug))
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(log.LevelInfo)) })
	return &buf
}

func testObjectiveOptions() ObjectiveOptions {
	return ObjectiveOptions{LearningRate: 1, Shrinkage: 1, MaxTreeOutput: 100, NumThreads: 1, ComputeHessians: true}
}

// stump builds a one-split tree on feature 0 and the matching partitioning.
func stump(threshold float64, lte, gt []int) (*RegressionTree, *DocumentPartitioning) {
	tree := NewRegressionTree()
	tree.split(0, 0, threshold, nil, 1, 0, 0, len(lte), len(gt))
	docs := append(append([]int(nil), lte...), gt...)
	docLeaf := make([]int, 0, len(docs))
	for range lte {
		docLeaf = append(docLeaf, 0)
	}
	for range gt {
		docLeaf = append(docLeaf, 1)
	}
	return tree, newDocumentPartitioning(docs, docLeaf, 2)
}

// scriptedTest returns one preset value per ComputeTests call.
type scriptedTest struct {
	values []float64
	lower  bool
	calls  int
}

func (s *scriptedTest) Name() string { return "scripted" }

func (s *scriptedTest) ComputeTests() ([]TestResult, error) {
	v := s.values[s.calls]
	s.calls++
	return []TestResult{{Name: "L1", Value: v, LowerIsBetter: s.lower}}, nil
}
