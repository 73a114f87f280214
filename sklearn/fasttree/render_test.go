package fasttree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-graphviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTree(t *testing.T) {
	tree, _ := stump(1.5, []int{0, 1}, []int{2, 3})
	tree.LeafValues = []float64{-0.5, 0.75}
	path := filepath.Join(t.TempDir(), "tree.svg")
	require.NoError(t, RenderTree(tree, []string{"age"}, graphviz.SVG, path))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<svg")
	assert.Contains(t, string(out), "age &lt;= 1.5")

	single := filepath.Join(t.TempDir(), "leaf.svg")
	require.NoError(t, RenderTree(NewRegressionTree(), nil, graphviz.SVG, single))
	assert.FileExists(t, single)
}

func TestNodeLabel(t *testing.T) {
	tree := NewRegressionTree()
	tree.split(0, 1, 0, []int{3, 1}, 1, 0, 0, 1, 1)
	assert.Equal(t, "f1 in {1,3}", nodeLabel(tree, nil, 0))
	assert.Equal(t, "color in {1,3}", nodeLabel(tree, []string{"x", "color"}, 0))
}
