package fasttree

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/TomFinley/machinelearning/core/model"
	"github.com/TomFinley/machinelearning/metrics"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
	"github.com/TomFinley/machinelearning/pkg/log"
)

// TweedieRegressor is a matrix-in, matrix-out wrapper around TweedieTrainer.
type TweedieRegressor struct {
	state  *model.StateManager
	logger log.Logger

	Options TweedieOptions

	Predictor *Predictor
	Result    *TrainingResult
}

var _ model.Regressor = (*TweedieRegressor)(nil)

// NewTweedieRegressor creates a regressor with DefaultTweedieOptions.
func NewTweedieRegressor() *TweedieRegressor {
	return &TweedieRegressor{
		state:   model.NewStateManager(),
		logger:  log.GetLoggerWithName("fasttree.regressor"),
		Options: DefaultTweedieOptions(),
	}
}

// WithIndex sets the Tweedie variance power.
func (r *TweedieRegressor) WithIndex(index float64) *TweedieRegressor {
	r.Options.Index = index
	return r
}

// WithNumTrees sets the number of boosting iterations.
func (r *TweedieRegressor) WithNumTrees(n int) *TweedieRegressor {
	r.Options.NumTrees = n
	return r
}

// WithNumLeaves sets the maximum number of leaves per tree.
func (r *TweedieRegressor) WithNumLeaves(n int) *TweedieRegressor {
	r.Options.NumLeaves = n
	return r
}

// WithMinDocsInLeaf sets the minimum number of documents per leaf.
func (r *TweedieRegressor) WithMinDocsInLeaf(n int) *TweedieRegressor {
	r.Options.MinDocsInLeaf = n
	return r
}

// WithLearningRate sets the learning rate
func (r *TweedieRegressor) WithLearningRate(lr float64) *TweedieRegressor {
	r.Options.LearningRate = lr
	return r
}

// WithLabelPolicy sets how negative labels are handled.
func (r *TweedieRegressor) WithLabelPolicy(p LabelPolicy) *TweedieRegressor {
	r.Options.LabelPolicy = p
	return r
}

// WithRandomSeed sets the seed for feature sampling and dropout.
func (r *TweedieRegressor) WithRandomSeed(seed uint64) *TweedieRegressor {
	r.Options.RandomSeed = seed
	return r
}

// Fit trains on X and the first column of y.
func (r *TweedieRegressor) Fit(X, y mat.Matrix) (err error) {
	defer ftErrors.Recover(&err, "TweedieRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return ftErrors.NewDimensionError("Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return ftErrors.NewDimensionError("Fit", 1, yCols, 1)
	}

	targets := make([]float64, rows)
	for i := range targets {
		targets[i] = y.At(i, 0)
	}
	train, err := NewDataset(X, targets, WithName("train"))
	if err != nil {
		return err
	}

	res, err := NewTweedieTrainer(r.Options).Fit(context.Background(), train, nil)
	if err != nil {
		return ftErrors.Wrap(err, "training failed")
	}
	r.Result = res
	r.Predictor = res.Predictor
	r.state.SetDimensions(cols, rows)
	r.state.SetFitted()
	r.logger.Debug("Fitted", log.TreesKey, res.Predictor.Ensemble.NumTrees(), log.SamplesKey, rows)
	return nil
}

// Predict returns exp of the ensemble score for every row of X.
func (r *TweedieRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("TweedieRegressor", "Predict"); err != nil {
		return nil, err
	}
	nFeatures, _ := r.state.GetDimensions()
	if _, cols := X.Dims(); cols != nFeatures {
		return nil, ftErrors.NewDimensionError("Predict", nFeatures, cols, 1)
	}
	return r.Predictor.Predict(X)
}

// Score returns the coefficient of determination R^2 of the prediction
func (r *TweedieRegressor) Score(X, y mat.Matrix) (float64, error) {
	if err := r.state.RequireFitted("TweedieRegressor", "Score"); err != nil {
		return 0, err
	}
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, pred.At(i, 0))
	}
	return metrics.R2Score(yVec, predVec)
}

// IsFitted reports whether Fit has succeeded.
func (r *TweedieRegressor) IsFitted() bool { return r.state.IsFitted() }

// SaveModel writes the fitted predictor to path.
func (r *TweedieRegressor) SaveModel(path string) error {
	if err := r.state.RequireFitted("TweedieRegressor", "SaveModel"); err != nil {
		return err
	}
	return r.Predictor.SaveFile(path)
}

// LoadModel replaces the regressor's state with the predictor at path.
func (r *TweedieRegressor) LoadModel(path string) error {
	p, err := LoadPredictorFile(path)
	if err != nil {
		return err
	}
	if p.Kind != TweediePrediction {
		return ftErrors.NewValueError("LoadModel", "file does not hold a Tweedie model")
	}
	r.Predictor = p
	r.state.SetDimensions(p.NumFeatures, 0)
	r.state.SetFitted()
	return nil
}
