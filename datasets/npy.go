// Package datasets loads FastTree training data stored as NumPy .npy files.
package datasets

import (
	"bufio"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
	"github.com/TomFinley/machinelearning/sklearn/fasttree"
)

// Files names the .npy files of one dataset. Features and Labels are
// required; Weights and Groups may be empty.
type Files struct {
	Name        string `yaml:"name"`
	Features    string `yaml:"features" validate:"required"`
	Labels      string `yaml:"labels" validate:"required"`
	Weights     string `yaml:"weights"`
	Groups      string `yaml:"groups"`
	Categorical []int  `yaml:"categorical"`
}

// LoadNpy reads files into a Dataset. Groups holds one integer query id
// per document, documents of a query being contiguous.
func LoadNpy(files Files) (*fasttree.Dataset, error) {
	if files.Features == "" || files.Labels == "" {
		return nil, ftErrors.NewValueError("LoadNpy", "features and labels are required")
	}
	logger := log.GetLoggerWithName("datasets")

	X, err := ReadMatrix(files.Features)
	if err != nil {
		return nil, err
	}
	labels, err := ReadVector(files.Labels)
	if err != nil {
		return nil, err
	}

	opts := []fasttree.DatasetOption{fasttree.WithName(files.Name)}
	if files.Weights != "" {
		w, err := ReadVector(files.Weights)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fasttree.WithWeights(w))
	}
	if files.Groups != "" {
		ids, err := readInts(files.Groups)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fasttree.WithGroupIDs(ids))
	}
	if len(files.Categorical) > 0 {
		opts = append(opts, fasttree.WithCategoricalFeatures(files.Categorical))
	}

	ds, err := fasttree.NewDataset(X, labels, opts...)
	if err != nil {
		return nil, ftErrors.Wrapf(err, "building dataset from %s", files.Features)
	}
	logger.Debug("Dataset loaded",
		log.DatasetKey, files.Name,
		log.SamplesKey, ds.NumDocs(),
		log.FeaturesKey, ds.NumFeatures(),
		log.QueriesKey, ds.NumQueries(),
	)
	return ds, nil
}

func openNpy(path string) (*npyio.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ftErrors.Wrapf(err, "opening %s", path)
	}
	r, err := npyio.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, ftErrors.Wrapf(err, "reading npy header of %s", path)
	}
	return r, f, nil
}

// ReadMatrix reads a 2-D float64 array.
func ReadMatrix(path string) (*mat.Dense, error) {
	r, f, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if shape := r.Header.Descr.Shape; len(shape) != 2 {
		return nil, ftErrors.NewValueError("ReadMatrix", path+": expected a 2-D array")
	}
	m := &mat.Dense{}
	if err := r.Read(m); err != nil {
		return nil, ftErrors.Wrapf(err, "reading %s", path)
	}
	return m, nil
}

// ReadVector reads a 1-D float64 array, or a 2-D array with a single row
// or column.
func ReadVector(path string) ([]float64, error) {
	r, f, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	shape := r.Header.Descr.Shape
	if len(shape) == 2 && shape[0] != 1 && shape[1] != 1 {
		return nil, ftErrors.NewValueError("ReadVector", path+": expected a single row or column")
	}
	if len(shape) > 2 {
		return nil, ftErrors.NewValueError("ReadVector", path+": expected a 1-D array")
	}
	var v []float64
	if err := r.Read(&v); err != nil {
		return nil, ftErrors.Wrapf(err, "reading %s", path)
	}
	return v, nil
}

// readInts reads integer ids stored as int64, int32 or float64.
func readInts(path string) ([]int, error) {
	r, f, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int
	switch r.Header.Descr.Type {
	case "<i8":
		var v []int64
		if err := r.Read(&v); err != nil {
			return nil, ftErrors.Wrapf(err, "reading %s", path)
		}
		out = make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
	case "<i4":
		var v []int32
		if err := r.Read(&v); err != nil {
			return nil, ftErrors.Wrapf(err, "reading %s", path)
		}
		out = make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
	default:
		var v []float64
		if err := r.Read(&v); err != nil {
			return nil, ftErrors.Wrapf(err, "reading %s", path)
		}
		out = make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
	}
	return out, nil
}

// WriteMatrix writes m as a 2-D float64 array.
func WriteMatrix(path string, m mat.Matrix) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return ftErrors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := npyio.Write(w, mat.DenseCopyOf(m)); err != nil {
		return ftErrors.Wrapf(err, "writing %s", path)
	}
	return w.Flush()
}
