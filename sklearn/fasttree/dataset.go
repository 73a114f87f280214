package fasttree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// Dataset is the immutable training input for one boosting session:
// a dense feature matrix, one target per document, optional weights and
// query boundaries grouping contiguous documents.
type Dataset struct {
	Name                string
	FeatureNames        []string
	CategoricalFeatures []int

	features   *mat.Dense
	targets    []float64
	weights    []float64
	boundaries []int
	groupIDs   []int
	categories map[int]bool
}

// DatasetOption is a functional option for configuring Dataset.
type DatasetOption func(*Dataset)

// WithWeights sets per-document weights. nil means uniform weights.
func WithWeights(weights []float64) DatasetOption {
	return func(ds *Dataset) {
		ds.weights = append([]float64(nil), weights...)
	}
}

// WithBoundaries sets query boundaries directly. boundaries[0] must be 0 and
// the last entry must equal the number of documents.
func WithBoundaries(boundaries []int) DatasetOption {
	return func(ds *Dataset) {
		ds.boundaries = append([]int(nil), boundaries...)
	}
}

// WithGroupIDs derives query boundaries from one group id per document.
// Documents of a group must be contiguous.
func WithGroupIDs(ids []int) DatasetOption {
	return func(ds *Dataset) {
		ds.groupIDs = append([]int(nil), ids...)
	}
}

// WithCategoricalFeatures marks feature columns holding integer category
// codes.
func WithCategoricalFeatures(indices []int) DatasetOption {
	return func(ds *Dataset) {
		ds.CategoricalFeatures = append([]int(nil), indices...)
	}
}

// WithFeatureNames sets feature names.
func WithFeatureNames(names []string) DatasetOption {
	return func(ds *Dataset) {
		ds.FeatureNames = append([]string(nil), names...)
	}
}

// WithName sets the dataset name used in test and log output.
func WithName(name string) DatasetOption {
	return func(ds *Dataset) {
		ds.Name = name
	}
}

// NewDataset copies features and targets into a new Dataset. Without
// boundary options every document is its own query.
func NewDataset(features mat.Matrix, targets []float64, options ...DatasetOption) (*Dataset, error) {
	if features == nil {
		return nil, ftErrors.NewValueError("NewDataset", "features cannot be nil")
	}
	rows, cols := features.Dims()
	if rows == 0 || cols == 0 {
		return nil, ftErrors.NewModelError("NewDataset", "empty features", ftErrors.ErrEmptyData)
	}
	if len(targets) != rows {
		return nil, ftErrors.NewDimensionError("NewDataset", rows, len(targets), 0)
	}

	ds := &Dataset{
		features: mat.DenseCopyOf(features),
		targets:  append([]float64(nil), targets...),
	}
	for _, opt := range options {
		opt(ds)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}

	if len(ds.FeatureNames) == 0 {
		ds.FeatureNames = make([]string, cols)
		for i := range ds.FeatureNames {
			ds.FeatureNames[i] = fmt.Sprintf("Column_%d", i)
		}
	}
	ds.categories = make(map[int]bool, len(ds.CategoricalFeatures))
	for _, f := range ds.CategoricalFeatures {
		ds.categories[f] = true
	}
	return ds, nil
}

func (ds *Dataset) validate() error {
	n, cols := ds.features.Dims()

	if ds.weights != nil {
		if len(ds.weights) != n {
			return ftErrors.NewDimensionError("NewDataset", n, len(ds.weights), 0)
		}
		for i, w := range ds.weights {
			if w < 0 {
				return ftErrors.NewValueError("NewDataset", fmt.Sprintf("negative weight %g at document %d", w, i))
			}
		}
	}

	if ds.groupIDs != nil {
		if ds.boundaries != nil {
			return ftErrors.NewValueError("NewDataset", "group ids and boundaries are mutually exclusive")
		}
		b, err := boundariesFromGroups(ds.groupIDs, n)
		if err != nil {
			return err
		}
		ds.boundaries = b
		ds.groupIDs = nil
	}

	if ds.boundaries == nil {
		ds.boundaries = make([]int, n+1)
		for i := range ds.boundaries {
			ds.boundaries[i] = i
		}
	}
	if len(ds.boundaries) < 2 || ds.boundaries[0] != 0 || ds.boundaries[len(ds.boundaries)-1] != n {
		return ftErrors.NewValueError("NewDataset", "boundaries must start at 0 and end at the number of documents")
	}
	for q := 1; q < len(ds.boundaries); q++ {
		if ds.boundaries[q] <= ds.boundaries[q-1] {
			return ftErrors.NewValueError("NewDataset", fmt.Sprintf("boundaries must be strictly increasing (query %d)", q-1))
		}
	}

	for _, f := range ds.CategoricalFeatures {
		if f < 0 || f >= cols {
			return ftErrors.NewValueError("NewDataset", fmt.Sprintf("categorical feature %d out of range", f))
		}
	}
	if ds.FeatureNames != nil && len(ds.FeatureNames) != cols {
		return ftErrors.NewDimensionError("NewDataset", cols, len(ds.FeatureNames), 1)
	}
	return nil
}

func boundariesFromGroups(ids []int, n int) ([]int, error) {
	if len(ids) != n {
		return nil, ftErrors.NewDimensionError("NewDataset", n, len(ids), 0)
	}
	seen := make(map[int]bool)
	boundaries := []int{0}
	for i := 1; i < n; i++ {
		if ids[i] == ids[i-1] {
			continue
		}
		seen[ids[i-1]] = true
		if seen[ids[i]] {
			return nil, ftErrors.NewValueError("NewDataset", fmt.Sprintf("group %d is not contiguous", ids[i]))
		}
		boundaries = append(boundaries, i)
	}
	return append(boundaries, n), nil
}

// NumDocs returns the number of documents.
func (ds *Dataset) NumDocs() int { return len(ds.targets) }

// NumFeatures returns the number of feature columns.
func (ds *Dataset) NumFeatures() int {
	_, c := ds.features.Dims()
	return c
}

// NumQueries returns the number of query groups.
func (ds *Dataset) NumQueries() int { return len(ds.boundaries) - 1 }

// Targets returns the labels. Callers must not modify the slice.
func (ds *Dataset) Targets() []float64 { return ds.targets }

// SampleWeights returns the weights, or nil when uniform.
func (ds *Dataset) SampleWeights() []float64 { return ds.weights }

// Boundaries returns the query boundaries.
func (ds *Dataset) Boundaries() []int { return ds.boundaries }

// QueryRange returns the half-open document range of query q.
func (ds *Dataset) QueryRange(q int) (begin, end int) {
	return ds.boundaries[q], ds.boundaries[q+1]
}

// Value returns feature f of document i.
func (ds *Dataset) Value(i, f int) float64 { return ds.features.At(i, f) }

// Row returns a view of document i's features.
func (ds *Dataset) Row(i int) []float64 { return ds.features.RawRowView(i) }

// Features returns the feature matrix. Callers must not modify it.
func (ds *Dataset) Features() *mat.Dense { return ds.features }

// IsCategorical reports whether feature f holds category codes.
func (ds *Dataset) IsCategorical(f int) bool { return ds.categories[f] }

// Weight returns document i's weight, 1 when weights are uniform.
func (ds *Dataset) Weight(i int) float64 {
	if ds.weights == nil {
		return 1
	}
	return ds.weights[i]
}

func (ds *Dataset) displayName(fallback string) string {
	if ds.Name != "" {
		return ds.Name
	}
	return fallback
}
