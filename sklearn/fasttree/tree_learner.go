package fasttree

import (
	"cmp"
	"math"
	"slices"

	"github.com/TomFinley/machinelearning/core/parallel"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// TreeLearner fits one regression tree per boosting iteration.
//
// FitTargets fits targets (one per training document) with per-document
// weights, using only features f with activeFeatures[f] set (nil means all
// features). It returns the tree together with the partitioning of the
// training documents over its leaves. A nil tree means no tree could be
// built.
type TreeLearner interface {
	FitTargets(activeFeatures []bool, targets, weights []float64) (*RegressionTree, *DocumentPartitioning, error)
}

// TreeLearnerOptions configures LeastSquaresTreeLearner.
type TreeLearnerOptions struct {
	NumLeaves     int
	MinDocsInLeaf int
	MaxBins       int
	NumThreads    int
}

// LeastSquaresTreeLearner grows trees leaf-wise, always splitting the leaf
// with the largest weighted least-squares gain, over histograms of
// pre-binned feature values. Leaf outputs are weighted target means.
type LeastSquaresTreeLearner struct {
	data    *Dataset
	opts    TreeLearnerOptions
	mappers []binMapper
	bins    [][]int32 // [feature][doc], nil for categorical features
}

const (
	gainEpsilon = 1e-12
	// below this many doc-feature pairs split finding stays on one goroutine
	parallelSplitThreshold = 4096
	missingCategory        = math.MinInt32
)

// NewLeastSquaresTreeLearner bins every numeric feature of data.
func NewLeastSquaresTreeLearner(data *Dataset, opts TreeLearnerOptions) *LeastSquaresTreeLearner {
	if opts.NumLeaves < 2 {
		opts.NumLeaves = 2
	}
	if opts.MinDocsInLeaf < 1 {
		opts.MinDocsInLeaf = 1
	}
	if opts.MaxBins < 2 {
		opts.MaxBins = 255
	}

	nf, n := data.NumFeatures(), data.NumDocs()
	l := &LeastSquaresTreeLearner{
		data:    data,
		opts:    opts,
		mappers: make([]binMapper, nf),
		bins:    make([][]int32, nf),
	}
	parallel.ParallelizeN(nf, opts.NumThreads, func(start, end int) {
		column := make([]float64, n)
		for f := start; f < end; f++ {
			if data.IsCategorical(f) {
				continue
			}
			for i := 0; i < n; i++ {
				column[i] = data.Value(i, f)
			}
			m := newBinMapper(column, opts.MaxBins)
			b := make([]int32, n)
			for i, v := range column {
				b[i] = int32(m.bin(v))
			}
			l.mappers[f], l.bins[f] = m, b
		}
	})
	return l
}

type leafStats struct {
	sumWT float64
	sumW  float64
	count int
}

func (s *leafStats) add(t, w float64) {
	s.sumWT += w * t
	s.sumW += w
	s.count++
}

func (s leafStats) minus(o leafStats) leafStats {
	return leafStats{sumWT: s.sumWT - o.sumWT, sumW: s.sumW - o.sumW, count: s.count - o.count}
}

func (s leafStats) score() float64 {
	if s.sumW <= 0 {
		return 0
	}
	return s.sumWT * s.sumWT / s.sumW
}

func (s leafStats) output() float64 {
	if s.sumW <= 0 {
		return 0
	}
	return s.sumWT / s.sumW
}

type splitCandidate struct {
	valid      bool
	feature    int
	bin        int
	categories []int
	gain       float64
	lte, gt    leafStats
}

type growingLeaf struct {
	docs  []int
	stats leafStats
	best  splitCandidate
}

// FitTargets implements TreeLearner.
func (l *LeastSquaresTreeLearner) FitTargets(activeFeatures []bool, targets, weights []float64) (*RegressionTree, *DocumentPartitioning, error) {
	n := l.data.NumDocs()
	if len(targets) != n {
		return nil, nil, ftErrors.NewDimensionError("FitTargets", n, len(targets), 0)
	}
	if weights != nil && len(weights) != n {
		return nil, nil, ftErrors.NewDimensionError("FitTargets", n, len(weights), 0)
	}

	features := make([]int, 0, l.data.NumFeatures())
	for f := 0; f < l.data.NumFeatures(); f++ {
		if activeFeatures == nil || activeFeatures[f] {
			features = append(features, f)
		}
	}

	root := &growingLeaf{docs: make([]int, n)}
	for i := range root.docs {
		root.docs[i] = i
		root.stats.add(targets[i], weightAt(weights, i))
	}
	root.best = l.findBestSplit(root, features, targets, weights)

	tree := NewRegressionTree()
	tree.LeafValues[0] = root.stats.output()
	tree.LeafCounts[0] = n
	leaves := []*growingLeaf{root}

	for tree.NumLeaves() < l.opts.NumLeaves {
		bestLeaf := -1
		for i, lf := range leaves {
			if lf.best.valid && (bestLeaf < 0 || lf.best.gain > leaves[bestLeaf].best.gain) {
				bestLeaf = i
			}
		}
		if bestLeaf < 0 {
			break
		}

		lf := leaves[bestLeaf]
		sp := lf.best
		lteDocs, gtDocs := l.partition(lf.docs, sp)

		threshold := math.NaN()
		if sp.categories == nil {
			threshold = l.mappers[sp.feature].threshold(sp.bin)
		}
		newLeaf := tree.split(bestLeaf, sp.feature, threshold, sp.categories, sp.gain,
			sp.lte.output(), sp.gt.output(), len(lteDocs), len(gtDocs))

		lte := &growingLeaf{docs: lteDocs, stats: sp.lte}
		gt := &growingLeaf{docs: gtDocs, stats: sp.gt}
		leaves[bestLeaf] = lte
		leaves = append(leaves, gt)
		if newLeaf != len(leaves)-1 {
			return nil, nil, ftErrors.NewModelError("FitTargets", "leaf index out of sync", nil)
		}
		if tree.NumLeaves() < l.opts.NumLeaves {
			lte.best = l.findBestSplit(lte, features, targets, weights)
			gt.best = l.findBestSplit(gt, features, targets, weights)
		}
	}

	docs := make([]int, 0, n)
	docLeaf := make([]int, 0, n)
	for leaf, lf := range leaves {
		for _, d := range lf.docs {
			docs = append(docs, d)
			docLeaf = append(docLeaf, leaf)
		}
	}
	return tree, newDocumentPartitioning(docs, docLeaf, len(leaves)), nil
}

func weightAt(weights []float64, i int) float64 {
	if weights == nil {
		return 1
	}
	return weights[i]
}

// findBestSplit evaluates every feature, in parallel for large leaves, and
// keeps the best gain. Ties go to the lower feature index.
func (l *LeastSquaresTreeLearner) findBestSplit(leaf *growingLeaf, features []int, targets, weights []float64) splitCandidate {
	if leaf.stats.count < 2*l.opts.MinDocsInLeaf || len(features) == 0 {
		return splitCandidate{}
	}

	results := make([]splitCandidate, len(features))
	workers := l.opts.NumThreads
	if len(leaf.docs)*len(features) < parallelSplitThreshold {
		workers = 1
	}
	parallel.ParallelizeN(len(features), workers, func(start, end int) {
		for i := start; i < end; i++ {
			f := features[i]
			if l.data.IsCategorical(f) {
				results[i] = l.bestCategoricalSplit(f, leaf, targets, weights)
			} else {
				results[i] = l.bestNumericSplit(f, leaf, targets, weights)
			}
		}
	})

	minGain := gainEpsilon * math.Max(1, leaf.stats.score())
	best := splitCandidate{}
	for _, c := range results {
		if c.valid && c.gain > minGain && (!best.valid || c.gain > best.gain) {
			best = c
		}
	}
	return best
}

func (l *LeastSquaresTreeLearner) admissible(lte, gt leafStats) bool {
	return lte.count >= l.opts.MinDocsInLeaf && gt.count >= l.opts.MinDocsInLeaf &&
		lte.sumW > 0 && gt.sumW > 0
}

func (l *LeastSquaresTreeLearner) bestNumericSplit(f int, leaf *growingLeaf, targets, weights []float64) splitCandidate {
	m := l.mappers[f]
	if m.numBins() < 2 {
		return splitCandidate{}
	}
	hist := make([]leafStats, m.numBins())
	bins := l.bins[f]
	for _, d := range leaf.docs {
		hist[bins[d]].add(targets[d], weightAt(weights, d))
	}

	best := splitCandidate{feature: f}
	parentScore := leaf.stats.score()
	var lte leafStats
	for b := 0; b < len(hist)-1; b++ {
		lte.sumWT += hist[b].sumWT
		lte.sumW += hist[b].sumW
		lte.count += hist[b].count
		if hist[b].count == 0 {
			continue
		}
		gt := leaf.stats.minus(lte)
		if !l.admissible(lte, gt) {
			continue
		}
		gain := lte.score() + gt.score() - parentScore
		if !best.valid || gain > best.gain {
			best = splitCandidate{valid: true, feature: f, bin: b, gain: gain, lte: lte, gt: gt}
		}
	}
	return best
}

type categoryStats struct {
	code  int
	stats leafStats
}

// bestCategoricalSplit orders categories by mean target and scans prefix
// splits of that order. Missing values always go to the GT side.
func (l *LeastSquaresTreeLearner) bestCategoricalSplit(f int, leaf *growingLeaf, targets, weights []float64) splitCandidate {
	byCode := make(map[int]*categoryStats)
	for _, d := range leaf.docs {
		code := categoryCode(l.data.Value(d, f))
		cs, ok := byCode[code]
		if !ok {
			cs = &categoryStats{code: code}
			byCode[code] = cs
		}
		cs.stats.add(targets[d], weightAt(weights, d))
	}
	missing := byCode[missingCategory]
	delete(byCode, missingCategory)

	cats := make([]*categoryStats, 0, len(byCode))
	for _, cs := range byCode {
		cats = append(cats, cs)
	}
	slices.SortFunc(cats, func(a, b *categoryStats) int {
		if c := cmp.Compare(a.stats.output(), b.stats.output()); c != 0 {
			return c
		}
		return cmp.Compare(a.code, b.code)
	})

	last := len(cats) - 1
	if missing != nil {
		last = len(cats)
	}
	best := splitCandidate{feature: f}
	parentScore := leaf.stats.score()
	var lte leafStats
	for i := 0; i < last; i++ {
		lte.sumWT += cats[i].stats.sumWT
		lte.sumW += cats[i].stats.sumW
		lte.count += cats[i].stats.count
		gt := leaf.stats.minus(lte)
		if !l.admissible(lte, gt) {
			continue
		}
		gain := lte.score() + gt.score() - parentScore
		if !best.valid || gain > best.gain {
			codes := make([]int, i+1)
			for j := range codes {
				codes[j] = cats[j].code
			}
			best = splitCandidate{valid: true, feature: f, categories: codes, gain: gain, lte: lte, gt: gt}
		}
	}
	return best
}

func categoryCode(v float64) int {
	if math.IsNaN(v) {
		return missingCategory
	}
	return int(v)
}

func (l *LeastSquaresTreeLearner) partition(docs []int, sp splitCandidate) (lte, gt []int) {
	lte = make([]int, 0, sp.lte.count)
	gt = make([]int, 0, sp.gt.count)
	if sp.categories != nil {
		cats := slices.Sorted(slices.Values(sp.categories))
		for _, d := range docs {
			v := l.data.Value(d, sp.feature)
			if _, found := slices.BinarySearch(cats, categoryCode(v)); found && !math.IsNaN(v) {
				lte = append(lte, d)
			} else {
				gt = append(gt, d)
			}
		}
		return lte, gt
	}
	bins := l.bins[sp.feature]
	for _, d := range docs {
		if int(bins[d]) <= sp.bin {
			lte = append(lte, d)
		} else {
			gt = append(gt, d)
		}
	}
	return lte, gt
}
