package fasttree

import (
	"fmt"
	"math"
	"strings"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// LabelPolicy decides what happens to labels outside the domain of a loss.
type LabelPolicy int

const (
	// LabelPolicyClamp replaces invalid labels and raises a warning.
	LabelPolicyClamp LabelPolicy = iota
	// LabelPolicyReject fails training.
	LabelPolicyReject
)

func (p LabelPolicy) String() string {
	switch p {
	case LabelPolicyClamp:
		return "clamp"
	case LabelPolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("LabelPolicy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p LabelPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *LabelPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "clamp", "":
		*p = LabelPolicyClamp
	case "reject":
		*p = LabelPolicyReject
	default:
		return ftErrors.NewValidationError("LabelPolicy", "must be clamp or reject", string(text))
	}
	return nil
}

// PrepareTweedieLabels returns a copy of labels valid for Tweedie loss and
// the number of labels that were not >= 0. Under LabelPolicyClamp those
// labels (NaN included) become 0; under LabelPolicyReject the first one is
// reported as an error.
func PrepareTweedieLabels(labels []float64, policy LabelPolicy) ([]float64, int, error) {
	out := make([]float64, len(labels))
	bad := 0
	for i, y := range labels {
		if y >= 0 {
			out[i] = y
			continue
		}
		if policy == LabelPolicyReject {
			return nil, 0, ftErrors.NewValidationError("Label", fmt.Sprintf("document %d has a negative label", i), y)
		}
		bad++
	}
	return out, bad, nil
}

// TweedieObjective is the Tweedie deviance on log-scale scores. With
// index == 1 it is the Poisson loss.
type TweedieObjective struct {
	objectiveBase
	index  float64
	index1 float64 // 1 - index
	index2 float64 // 2 - index
}

// NewTweedieObjective validates 1 <= index <= 2 and prepares the labels of
// data according to policy.
func NewTweedieObjective(data *Dataset, index float64, policy LabelPolicy, opts ObjectiveOptions) (*TweedieObjective, error) {
	if !(index >= 1 && index <= 2) {
		return nil, ftErrors.NewValidationError("Index", "must be in [1, 2]", index)
	}
	targets, clamped, err := PrepareTweedieLabels(data.Targets(), policy)
	if err != nil {
		return nil, err
	}
	if clamped > 0 {
		ftErrors.Warn(ftErrors.NewDataConversionWarning("label", clamped, "negative labels clamped to 0 for Tweedie loss"))
	}
	return &TweedieObjective{
		objectiveBase: newObjectiveBase(data, targets, opts),
		index:         index,
		index1:        1 - index,
		index2:        2 - index,
	}, nil
}

// Index returns the Tweedie variance power.
func (o *TweedieObjective) Index() float64 { return o.index }

// GetGradient implements ObjectiveFunction.
func (o *TweedieObjective) GetGradient(scores []float64) ([]float64, error) {
	return o.computeGradients(o, scores)
}

func (o *TweedieObjective) gradientInOneQuery(query int, scores []float64) {
	begin, end := o.data.QueryRange(query)
	for i := begin; i < end; i++ {
		g, h := tweedieDerivatives(scores[i], o.targets[i], o.index1, o.index2)
		o.gradients[i] = g
		if o.hessians != nil {
			o.hessians[i] = h
		}
	}
}

// tweedieDerivatives returns the first and second derivative of the Tweedie
// loss at score s for label y.
func tweedieDerivatives(s, y, index1, index2 float64) (float64, float64) {
	if index1 == 0 {
		e := math.Exp(s)
		return e - y, e
	}
	e1 := math.Exp(index1 * s)
	e2 := math.Exp(index2 * s)
	return e2 - y*e1, index2*e2 - index1*y*e1
}

// AdjustTreeOutputs sets each leaf to the clamped Newton step
// learningRate·shrinkage·(log num − log denom) over the documents of the
// leaf. A leaf with num == denom == 0 gets 0.
func (o *TweedieObjective) AdjustTreeOutputs(tree *RegressionTree, partitioning *DocumentPartitioning, scores []float64) error {
	if partitioning.NumLeaves() != tree.NumLeaves() {
		return ftErrors.NewDimensionError("AdjustTreeOutputs", tree.NumLeaves(), partitioning.NumLeaves(), 0)
	}
	mult := o.stepMultiplier()
	for l := 0; l < tree.NumLeaves(); l++ {
		var num, denom float64
		for _, d := range partitioning.DocumentsInLeaf(l) {
			w := o.data.Weight(d)
			s, y := scores[d], o.targets[d]
			if o.index1 == 0 {
				num += w * y
				denom += w * math.Exp(s)
			} else {
				num += w * y * math.Exp(o.index1*s)
				denom += w * math.Exp(o.index2*s)
			}
		}
		step := 0.0
		if num != 0 || denom != 0 {
			step = o.clampStep(mult * (math.Log(num) - math.Log(denom)))
		}
		tree.SetOutput(l, step)
	}
	return nil
}

// Loss implements ObjectiveFunction. Its derivative is GetGradient.
func (o *TweedieObjective) Loss(scores []float64) float64 {
	return o.weightedMean(func(i int) float64 {
		s, y := scores[i], o.targets[i]
		switch {
		case o.index1 == 0:
			return math.Exp(s) - y*s
		case o.index2 == 0:
			return y*math.Exp(-s) + s
		default:
			return -y*math.Exp(o.index1*s)/o.index1 + math.Exp(o.index2*s)/o.index2
		}
	})
}

// TweedieTransform maps a raw log-scale score to the predicted mean.
func TweedieTransform(raw float64) float64 { return math.Exp(raw) }
