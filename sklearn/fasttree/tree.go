package fasttree

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// RegressionTree is a binary tree stored in parallel arrays. Internal node n
// routes a document to LteChild[n] when its value of SplitFeature[n] is
// <= Threshold[n] (or, for categorical splits, is one of
// CategoricalValues[n]) and to GtChild[n] otherwise. NaN always goes to the
// GT side. A negative child c refers to leaf ^c.
//
// Fields are exported for gob.
type RegressionTree struct {
	SplitFeature      []int
	Threshold         []float64
	CategoricalSplit  []bool
	CategoricalValues [][]int
	LteChild          []int
	GtChild           []int
	Gain              []float64

	LeafValues []float64
	LeafCounts []int
}

// NewRegressionTree returns a tree with a single leaf of output 0.
func NewRegressionTree() *RegressionTree {
	return &RegressionTree{LeafValues: []float64{0}, LeafCounts: []int{0}}
}

// NumLeaves returns the number of leaves.
func (t *RegressionTree) NumLeaves() int { return len(t.LeafValues) }

// NumNodes returns the number of internal nodes.
func (t *RegressionTree) NumNodes() int { return len(t.SplitFeature) }

// LeafValue returns the output of leaf l.
func (t *RegressionTree) LeafValue(l int) float64 { return t.LeafValues[l] }

// SetOutput sets the output of leaf l.
func (t *RegressionTree) SetOutput(l int, v float64) { t.LeafValues[l] = v }

// ScaleOutputs multiplies every leaf output by f.
func (t *RegressionTree) ScaleOutputs(f float64) {
	for l := range t.LeafValues {
		t.LeafValues[l] *= f
	}
}

// MaxAbsOutput returns the largest absolute leaf output.
func (t *RegressionTree) MaxAbsOutput() float64 {
	m := 0.0
	for _, v := range t.LeafValues {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// GetLeaf returns the leaf row is routed to.
func (t *RegressionTree) GetLeaf(row []float64) int {
	if len(t.SplitFeature) == 0 {
		return 0
	}
	node := 0
	for {
		var next int
		if t.goesLte(node, row[t.SplitFeature[node]]) {
			next = t.LteChild[node]
		} else {
			next = t.GtChild[node]
		}
		if next < 0 {
			return ^next
		}
		node = next
	}
}

func (t *RegressionTree) goesLte(node int, v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if t.CategoricalSplit[node] {
		_, found := slices.BinarySearch(t.CategoricalValues[node], int(v))
		return found
	}
	return v <= t.Threshold[node]
}

// Predict returns the output of the leaf row is routed to.
func (t *RegressionTree) Predict(row []float64) float64 {
	return t.LeafValues[t.GetLeaf(row)]
}

// split turns leaf into an internal node. The LTE child keeps the leaf's
// index; the GT child becomes a new leaf, whose index is returned.
func (t *RegressionTree) split(leaf, feature int, threshold float64, categories []int, gain, lteValue, gtValue float64, lteCount, gtCount int) int {
	node := len(t.SplitFeature)
	newLeaf := len(t.LeafValues)

	// repoint the parent before the node arrays grow
	for n := 0; n < node; n++ {
		if t.LteChild[n] == ^leaf {
			t.LteChild[n] = node
		}
		if t.GtChild[n] == ^leaf {
			t.GtChild[n] = node
		}
	}

	t.SplitFeature = append(t.SplitFeature, feature)
	t.Threshold = append(t.Threshold, threshold)
	t.CategoricalSplit = append(t.CategoricalSplit, categories != nil)
	var cats []int
	if categories != nil {
		cats = slices.Clone(categories)
		slices.Sort(cats)
	}
	t.CategoricalValues = append(t.CategoricalValues, cats)
	t.LteChild = append(t.LteChild, ^leaf)
	t.GtChild = append(t.GtChild, ^newLeaf)
	t.Gain = append(t.Gain, gain)

	t.LeafValues[leaf] = lteValue
	t.LeafCounts[leaf] = lteCount
	t.LeafValues = append(t.LeafValues, gtValue)
	t.LeafCounts = append(t.LeafCounts, gtCount)
	return newLeaf
}

// SmoothLeafOutputs shrinks every leaf output towards the count-weighted
// output of its ancestors:
//
//	smoothed(child) = (1-s)·raw(child) + s·smoothed(parent)
//
// where raw of an internal node is the count-weighted mean of its leaves and
// the root is its own parent. s must be in [0, 1).
func (t *RegressionTree) SmoothLeafOutputs(s float64) {
	if s == 0 || len(t.SplitFeature) == 0 {
		return
	}
	n := len(t.SplitFeature)
	sum := make([]float64, n)
	cnt := make([]float64, n)

	// nodes are created after their parent, so children have larger indices
	childStats := func(c int) (float64, float64) {
		if c < 0 {
			w := float64(t.LeafCounts[^c])
			return t.LeafValues[^c] * w, w
		}
		return sum[c], cnt[c]
	}
	for node := n - 1; node >= 0; node-- {
		ls, lc := childStats(t.LteChild[node])
		gs, gc := childStats(t.GtChild[node])
		sum[node], cnt[node] = ls+gs, lc+gc
	}
	mean := func(node int) float64 {
		if cnt[node] == 0 {
			return 0
		}
		return sum[node] / cnt[node]
	}

	smoothed := make([]float64, n)
	smoothed[0] = mean(0)
	for node := 0; node < n; node++ {
		for _, c := range [2]int{t.LteChild[node], t.GtChild[node]} {
			if c < 0 {
				t.LeafValues[^c] = (1-s)*t.LeafValues[^c] + s*smoothed[node]
			} else {
				smoothed[c] = (1-s)*mean(c) + s*smoothed[node]
			}
		}
	}
}

// Clone returns a deep copy.
func (t *RegressionTree) Clone() *RegressionTree {
	cp := &RegressionTree{
		SplitFeature:      slices.Clone(t.SplitFeature),
		Threshold:         slices.Clone(t.Threshold),
		CategoricalSplit:  slices.Clone(t.CategoricalSplit),
		CategoricalValues: make([][]int, len(t.CategoricalValues)),
		LteChild:          slices.Clone(t.LteChild),
		GtChild:           slices.Clone(t.GtChild),
		Gain:              slices.Clone(t.Gain),
		LeafValues:        slices.Clone(t.LeafValues),
		LeafCounts:        slices.Clone(t.LeafCounts),
	}
	for i, c := range t.CategoricalValues {
		cp.CategoricalValues[i] = slices.Clone(c)
	}
	return cp
}

// Ensemble is the ordered sequence of trees whose outputs sum to the raw
// score.
type Ensemble struct {
	Trees []*RegressionTree
}

// NewEnsemble returns an empty ensemble.
func NewEnsemble() *Ensemble { return &Ensemble{} }

// AddTree appends t.
func (e *Ensemble) AddTree(t *RegressionTree) { e.Trees = append(e.Trees, t) }

// NumTrees returns the number of trees.
func (e *Ensemble) NumTrees() int { return len(e.Trees) }

// Tree returns tree i.
func (e *Ensemble) Tree(i int) *RegressionTree { return e.Trees[i] }

// RemoveAfter truncates the ensemble to its first n trees.
func (e *Ensemble) RemoveAfter(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(e.Trees) {
		clear(e.Trees[n:])
		e.Trees = e.Trees[:n]
	}
}

// RawScore sums the tree outputs for row.
func (e *Ensemble) RawScore(row []float64) float64 {
	s := 0.0
	for _, t := range e.Trees {
		s += t.Predict(row)
	}
	return s
}

// RawScores returns the raw score of every row of X.
func (e *Ensemble) RawScores(X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = e.RawScore(row)
	}
	return out
}

// DocumentPartitioning maps each leaf of a freshly fitted tree to the
// training documents routed to it. Every partitioned document is in exactly
// one leaf.
type DocumentPartitioning struct {
	leafBegin []int
	leafCount []int
	documents []int
}

// newDocumentPartitioning groups documents by leaf with a counting sort.
// docLeaf[i] is the leaf of document docs[i].
func newDocumentPartitioning(docs, docLeaf []int, numLeaves int) *DocumentPartitioning {
	p := &DocumentPartitioning{
		leafBegin: make([]int, numLeaves),
		leafCount: make([]int, numLeaves),
		documents: make([]int, len(docs)),
	}
	for _, l := range docLeaf {
		p.leafCount[l]++
	}
	for l := 1; l < numLeaves; l++ {
		p.leafBegin[l] = p.leafBegin[l-1] + p.leafCount[l-1]
	}
	next := slices.Clone(p.leafBegin)
	for i, d := range docs {
		l := docLeaf[i]
		p.documents[next[l]] = d
		next[l]++
	}
	return p
}

// NumLeaves returns the number of leaves.
func (p *DocumentPartitioning) NumLeaves() int { return len(p.leafCount) }

// NumDocs returns the number of partitioned documents.
func (p *DocumentPartitioning) NumDocs() int { return len(p.documents) }

// DocumentsInLeaf returns the documents of leaf l. The slice must not be
// modified.
func (p *DocumentPartitioning) DocumentsInLeaf(l int) []int {
	return p.documents[p.leafBegin[l] : p.leafBegin[l]+p.leafCount[l]]
}

// LeafOutputs expands per-leaf values to one value per document; documents
// outside the partitioning get 0.
func (p *DocumentPartitioning) LeafOutputs(tree *RegressionTree, numDocs int) []float64 {
	out := make([]float64, numDocs)
	for l := 0; l < p.NumLeaves(); l++ {
		v := tree.LeafValues[l]
		for _, d := range p.DocumentsInLeaf(l) {
			out[d] = v
		}
	}
	return out
}
