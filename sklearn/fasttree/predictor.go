package fasttree

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/TomFinley/machinelearning/core/model"
	"github.com/TomFinley/machinelearning/core/parallel"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// PredictionKind selects the transform applied to raw ensemble scores.
type PredictionKind int

const (
	// RegressionPrediction outputs the raw score.
	RegressionPrediction PredictionKind = iota
	// TweediePrediction outputs exp(raw score).
	TweediePrediction
)

// OutputColumn describes one column produced by a predictor.
type OutputColumn struct {
	Name     string
	Type     string
	Metadata map[string]string
}

var predictorVersion = model.VersionInfo{
	ModelSignature:   "FTREE PR",
	VerWrittenCur:    0x00010001,
	VerReadableCur:   0x00010001,
	VerWeCanReadBack: 0x00010001,
}

// Predictor scores rows with a trained ensemble. It is immutable after
// training and safe for concurrent use.
type Predictor struct {
	Ensemble     *Ensemble
	Kind         PredictionKind
	NumFeatures  int
	FeatureNames []string
	NumThreads   int
}

// NewPredictor wraps ensemble.
func NewPredictor(ensemble *Ensemble, kind PredictionKind, numFeatures int, featureNames []string) *Predictor {
	return &Predictor{Ensemble: ensemble, Kind: kind, NumFeatures: numFeatures, FeatureNames: featureNames}
}

// Transform maps a raw score to the prediction.
func (p *Predictor) Transform(raw float64) float64 {
	if p.Kind == TweediePrediction {
		return TweedieTransform(raw)
	}
	return raw
}

// PredictRow predicts one row.
func (p *Predictor) PredictRow(row []float64) (float64, error) {
	if len(row) != p.NumFeatures {
		return 0, ftErrors.NewDimensionError("PredictRow", p.NumFeatures, len(row), 1)
	}
	return p.Transform(p.Ensemble.RawScore(row)), nil
}

// RawScores returns the untransformed score of every row of X.
func (p *Predictor) RawScores(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != p.NumFeatures {
		return nil, ftErrors.NewDimensionError("RawScores", p.NumFeatures, cols, 1)
	}
	out := make([]float64, rows)
	parallel.ParallelizeN(rows, p.NumThreads, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = p.Ensemble.RawScore(row)
		}
	})
	return out, nil
}

// Predict returns a single-column matrix of predictions.
func (p *Predictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	raw, err := p.RawScores(X)
	if err != nil {
		return nil, err
	}
	for i, r := range raw {
		raw[i] = p.Transform(r)
	}
	return mat.NewDense(len(raw), 1, raw), nil
}

// OutputSchema returns the single Score column.
func (p *Predictor) OutputSchema() []OutputColumn {
	kind := "regression"
	if p.Kind == TweediePrediction {
		kind = "tweedie"
	}
	return []OutputColumn{{
		Name: "Score",
		Type: "float64",
		Metadata: map[string]string{
			"ScoreColumnKind": kind,
			"Trees":           fmt.Sprint(p.Ensemble.NumTrees()),
		},
	}}
}

// MaxAbsLeafOutput returns the largest absolute leaf output of the ensemble.
func (p *Predictor) MaxAbsLeafOutput() float64 {
	m := 0.0
	for _, t := range p.Ensemble.Trees {
		m = math.Max(m, t.MaxAbsOutput())
	}
	return m
}

// Save writes the predictor with a version header.
func (p *Predictor) Save(w io.Writer) error {
	if err := model.SaveVersioned(w, predictorVersion, p); err != nil {
		return ftErrors.NewModelError("Predictor.Save", "encoding", err)
	}
	return nil
}

// LoadPredictor reads a predictor written by Save. Files from an
// incompatible version fail with a VersionError.
func LoadPredictor(r io.Reader) (*Predictor, error) {
	var p Predictor
	if _, err := model.LoadVersioned(r, predictorVersion, &p); err != nil {
		var verr *ftErrors.VersionError
		if ftErrors.As(err, &verr) {
			return nil, err
		}
		return nil, ftErrors.NewModelError("LoadPredictor", "decoding", err)
	}
	if p.Ensemble == nil {
		p.Ensemble = NewEnsemble()
	}
	return &p, nil
}

// SaveFile writes the predictor to path.
func (p *Predictor) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return ftErrors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := p.Save(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// LoadPredictorFile reads a predictor from path.
func LoadPredictorFile(path string) (*Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ftErrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return LoadPredictor(bufio.NewReader(f))
}
