package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeNpy(t *testing.T, dir, name string, v interface{}) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, v))
	require.NoError(t, f.Close())
	return path
}

func TestLoadNpy(t *testing.T) {
	dir := t.TempDir()
	X := mat.NewDense(4, 2, []float64{
		0, 1,
		1, 0,
		2, 1,
		3, 0,
	})
	files := Files{
		Name:     "train",
		Features: writeNpy(t, dir, "x.npy", X),
		Labels:   writeNpy(t, dir, "y.npy", []float64{1, 0, 3, 2}),
		Weights:  writeNpy(t, dir, "w.npy", []float64{1, 1, 2, 2}),
		Groups:   writeNpy(t, dir, "g.npy", []int64{7, 7, 9, 9}),
	}

	ds, err := LoadNpy(files)
	require.NoError(t, err)
	assert.Equal(t, "train", ds.Name)
	assert.Equal(t, 4, ds.NumDocs())
	assert.Equal(t, 2, ds.NumFeatures())
	assert.Equal(t, []float64{1, 0, 3, 2}, ds.Targets())
	assert.Equal(t, []float64{1, 1, 2, 2}, ds.SampleWeights())
	assert.Equal(t, []int{0, 2, 4}, ds.Boundaries())
	assert.Equal(t, 3.0, ds.Value(3, 0))
}

func TestLoadNpyErrors(t *testing.T) {
	dir := t.TempDir()
	X := writeNpy(t, dir, "x.npy", mat.NewDense(2, 1, []float64{1, 2}))

	_, err := LoadNpy(Files{Features: X})
	assert.Error(t, err)

	_, err = LoadNpy(Files{Features: X, Labels: writeNpy(t, dir, "y3.npy", []float64{1, 2, 3})})
	assert.Error(t, err, "label count must match the feature rows")

	_, err = LoadNpy(Files{Features: writeNpy(t, dir, "v.npy", []float64{1, 2}), Labels: X})
	assert.Error(t, err, "features must be 2-D")

	_, err = LoadNpy(Files{Features: X, Labels: filepath.Join(dir, "missing.npy")})
	assert.Error(t, err)
}

func TestReadVectorShapes(t *testing.T) {
	dir := t.TempDir()

	v, err := ReadVector(writeNpy(t, dir, "col.npy", mat.NewDense(3, 1, []float64{1, 2, 3})))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)

	_, err = ReadVector(writeNpy(t, dir, "m.npy", mat.NewDense(2, 2, nil)))
	assert.Error(t, err)
}

func TestWriteMatrixRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.npy")
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, WriteMatrix(path, m))

	got, err := ReadMatrix(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))
}
