package fasttree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// graphviz keeps global C state; renders are serialized.
var renderMu sync.Mutex

// RenderTree draws tree with graphviz and writes it to path in format,
// e.g. graphviz.SVG. featureNames may be nil.
func RenderTree(tree *RegressionTree, featureNames []string, format graphviz.Format, path string) error {
	renderMu.Lock()
	defer renderMu.Unlock()

	g := graphviz.New()
	defer g.Close()
	graph, err := g.Graph()
	if err != nil {
		return ftErrors.Wrap(err, "creating graph")
	}
	defer graph.Close()

	if tree.NumNodes() == 0 {
		if _, err := drawLeaf(graph, tree, 0); err != nil {
			return err
		}
	} else if _, err := drawNode(graph, tree, featureNames, 0); err != nil {
		return err
	}
	if err := g.RenderFilename(graph, format, path); err != nil {
		return ftErrors.Wrapf(err, "rendering tree to %s", path)
	}
	return nil
}

func drawLeaf(graph *cgraph.Graph, tree *RegressionTree, leaf int) (*cgraph.Node, error) {
	n, err := graph.CreateNode(fmt.Sprintf("leaf%d", leaf))
	if err != nil {
		return nil, ftErrors.Wrap(err, "creating leaf")
	}
	n.Set("label", fmt.Sprintf("leaf %d\n%.4g\nn=%d", leaf, tree.LeafValues[leaf], tree.LeafCounts[leaf]))
	n.Set("shape", "box")
	return n, nil
}

func drawNode(graph *cgraph.Graph, tree *RegressionTree, featureNames []string, node int) (*cgraph.Node, error) {
	n, err := graph.CreateNode(fmt.Sprintf("node%d", node))
	if err != nil {
		return nil, ftErrors.Wrap(err, "creating node")
	}
	n.Set("label", nodeLabel(tree, featureNames, node))

	for _, side := range []struct {
		child int
		label string
	}{{tree.LteChild[node], "yes"}, {tree.GtChild[node], "no"}} {
		var c *cgraph.Node
		if side.child < 0 {
			c, err = drawLeaf(graph, tree, ^side.child)
		} else {
			c, err = drawNode(graph, tree, featureNames, side.child)
		}
		if err != nil {
			return nil, err
		}
		e, err := graph.CreateEdge("", n, c)
		if err != nil {
			return nil, ftErrors.Wrap(err, "creating edge")
		}
		e.Set("label", side.label)
	}
	return n, nil
}

func nodeLabel(tree *RegressionTree, featureNames []string, node int) string {
	f := tree.SplitFeature[node]
	name := fmt.Sprintf("f%d", f)
	if f < len(featureNames) && featureNames[f] != "" {
		name = featureNames[f]
	}
	if tree.CategoricalSplit[node] {
		vals := make([]string, len(tree.CategoricalValues[node]))
		for i, v := range tree.CategoricalValues[node] {
			vals[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf("%s in {%s}", name, strings.Join(vals, ","))
	}
	return fmt.Sprintf("%s <= %.4g", name, tree.Threshold[node])
}
