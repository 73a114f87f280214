package fasttree

import (
	"math"
	"slices"
	"sort"
)

// binMapper discretises one numeric feature. upper[b] is the inclusive upper
// bound of bin b; the last bound is +Inf and NaN maps to the last bin.
type binMapper struct {
	upper []float64
}

// newBinMapper places bin bounds midway between distinct values. With more
// distinct values than maxBins the bounds are taken at evenly spaced
// quantiles of the distinct values.
func newBinMapper(values []float64, maxBins int) binMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	slices.Sort(sorted)
	unique := slices.Compact(sorted)

	if len(unique) <= 1 {
		return binMapper{upper: []float64{math.Inf(1)}}
	}

	var upper []float64
	if len(unique) <= maxBins {
		upper = make([]float64, 0, len(unique))
		for i := 0; i < len(unique)-1; i++ {
			upper = append(upper, midpoint(unique[i], unique[i+1]))
		}
	} else {
		upper = make([]float64, 0, maxBins)
		for i := 1; i < maxBins; i++ {
			q := (len(unique) - 1) * i / maxBins
			upper = append(upper, midpoint(unique[q], unique[q+1]))
		}
		upper = slices.Compact(upper)
	}
	return binMapper{upper: append(upper, math.Inf(1))}
}

// midpoint returns a bound b with lo <= b < hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

func (b binMapper) numBins() int { return len(b.upper) }

// bin returns the first bin whose upper bound is >= v.
func (b binMapper) bin(v float64) int {
	if math.IsNaN(v) {
		return len(b.upper) - 1
	}
	return sort.SearchFloat64s(b.upper, v)
}

// threshold returns the split threshold sending bins 0..bin to the LTE side.
func (b binMapper) threshold(bin int) float64 { return b.upper[bin] }
