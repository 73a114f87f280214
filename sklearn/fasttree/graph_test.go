package fasttree

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLearningCurve(t *testing.T) {
	history := []GraphPoint{
		{Iteration: 1, Metric: "L1", Train: 1.0, Valid: 1.1},
		{Iteration: 2, Metric: "L1", Train: 0.8, Valid: 0.95},
		{Iteration: 3, Metric: "L1", Train: 0.7, Valid: math.NaN()},
	}
	path := filepath.Join(t.TempDir(), "curve.png")
	require.NoError(t, SaveLearningCurve(history, "FastTreeTweedie", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveLearningCurveErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, SaveLearningCurve(nil, "empty", filepath.Join(dir, "a.png")))

	nan := []GraphPoint{{Iteration: 1, Metric: "L1", Train: math.NaN(), Valid: math.NaN()}}
	assert.Error(t, SaveLearningCurve(nan, "nan", filepath.Join(dir, "b.png")))
}
