// Package metrics provides the regression metrics reported during boosting.
//
// All per-document metrics accept optional weights; a nil weight slice means
// every document has weight 1. Weighted averages are computed with
// gonum/stat so that the normalisation matches stat.Mean.
//
// Metrics:
//   - L1: weighted mean absolute error
//   - L2: weighted mean squared error
//   - RMS: square root of L2
//   - TweedieDeviance: weighted mean Tweedie unit deviance
//   - R2Score: coefficient of determination
//
// Example usage:
//
//	l1, err := metrics.L1(labels, preds, nil)
//	dev, err := metrics.TweedieDeviance(labels, preds, weights, 1.5)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

func checkInputs(op string, labels, preds, weights []float64) error {
	n := len(labels)
	if n == 0 {
		return ftErrors.NewValueError(op, "empty input")
	}
	if len(preds) != n {
		return ftErrors.NewDimensionError(op, n, len(preds), 0)
	}
	if weights != nil && len(weights) != n {
		return ftErrors.NewDimensionError(op, n, len(weights), 0)
	}
	return nil
}

// L1 calculates the weighted mean absolute error.
//
// Parameters:
//   - labels: true target values
//   - preds: predicted values, same length as labels
//   - weights: per-document weights, or nil for uniform weights
//
// Returns:
//   - float64: Σw·|y−p| / Σw
//   - error: ValueError on empty input, DimensionError on length mismatch
func L1(labels, preds, weights []float64) (float64, error) {
	if err := checkInputs("L1", labels, preds, weights); err != nil {
		return 0, err
	}
	abs := make([]float64, len(labels))
	for i := range labels {
		abs[i] = math.Abs(labels[i] - preds[i])
	}
	return stat.Mean(abs, weights), nil
}

// L2 calculates the weighted mean squared error.
//
// Parameters:
//   - labels: true target values
//   - preds: predicted values, same length as labels
//   - weights: per-document weights, or nil for uniform weights
//
// Returns:
//   - float64: Σw·(y−p)² / Σw
//   - error: ValueError on empty input, DimensionError on length mismatch
func L2(labels, preds, weights []float64) (float64, error) {
	if err := checkInputs("L2", labels, preds, weights); err != nil {
		return 0, err
	}
	sq := make([]float64, len(labels))
	for i := range labels {
		d := labels[i] - preds[i]
		sq[i] = d * d
	}
	return stat.Mean(sq, weights), nil
}

// RMS is the square root of L2.
func RMS(labels, preds, weights []float64) (float64, error) {
	l2, err := L2(labels, preds, weights)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(l2), nil
}

// TweedieDeviance calculates the weighted mean Tweedie unit deviance of
// predicted means preds for the given power.
//
// The unit deviance for 1 < power < 2 is
//
//	2·( y^(2−p)/((1−p)(2−p)) − y·μ^(1−p)/(1−p) + μ^(2−p)/(2−p) )
//
// power == 1 gives the Poisson deviance 2·(y·log(y/μ) − y + μ) and
// power == 2 the Gamma deviance 2·(log(μ/y) + y/μ − 1).
//
// Parameters:
//   - labels: non-negative targets (strictly positive when power == 2)
//   - preds: predicted means, strictly positive
//   - weights: per-document weights, or nil for uniform weights
//   - power: variance power in [1, 2]
//
// Returns:
//   - float64: weighted mean deviance, 0 for perfect predictions
//   - error: ValueError when power is out of range or an input is outside
//     the domain of the deviance
func TweedieDeviance(labels, preds, weights []float64, power float64) (float64, error) {
	if err := checkInputs("TweedieDeviance", labels, preds, weights); err != nil {
		return 0, err
	}
	if power < 1 || power > 2 {
		return 0, ftErrors.NewValueError("TweedieDeviance", "power must be in [1, 2]")
	}

	dev := make([]float64, len(labels))
	for i := range labels {
		y, mu := labels[i], preds[i]
		if mu <= 0 || y < 0 {
			return 0, ftErrors.NewValueError("TweedieDeviance", "labels must be non-negative and predictions positive")
		}
		switch power {
		case 1:
			d := mu - y
			if y > 0 {
				d += y * math.Log(y/mu)
			}
			dev[i] = 2 * d
		case 2:
			if y == 0 {
				return 0, ftErrors.NewValueError("TweedieDeviance", "labels must be positive for power 2")
			}
			dev[i] = 2 * (math.Log(mu/y) + y/mu - 1)
		default:
			p1, p2 := 1-power, 2-power
			dev[i] = 2 * (math.Pow(y, p2)/(p1*p2) - y*math.Pow(mu, p1)/p1 + math.Pow(mu, p2)/p2)
		}
	}
	return stat.Mean(dev, weights), nil
}

// R2Score calculates the coefficient of determination.
//
// Parameters:
//   - yTrue: true target values
//   - yPred: predicted values
//
// Returns:
//   - float64: 1 − RSS/TSS, at most 1 and possibly negative
//   - error: ValueError on empty input or when yTrue has no variance,
//     DimensionError on length mismatch
//
// Example:
//
//	r2, err := metrics.R2Score(yTrue, yPred)
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, ftErrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, ftErrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	yMean := mat.Sum(yTrue) / float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	if tss == 0 {
		return 0, ftErrors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
