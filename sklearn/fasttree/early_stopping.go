package fasttree

import (
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// EarlyStoppingRule decides after each iteration whether training should
// stop. isBest reports that validScore is the best seen so far.
type EarlyStoppingRule interface {
	CheckScore(validScore, trainScore float64) (shouldStop, isBest bool)
}

// EarlyStoppingRuleFactory builds a rule once the direction of the
// validation metric is known.
type EarlyStoppingRuleFactory func(lowerIsBetter bool) EarlyStoppingRule

type bestTracker struct {
	lowerIsBetter bool
	best          float64
	seen          bool
}

func (b *bestTracker) observe(score float64) bool {
	if !b.seen || isBetter(score, b.best, b.lowerIsBetter) {
		b.best, b.seen = score, true
		return true
	}
	return false
}

// generalityLoss is the relative degradation of score from the best score.
func (b *bestTracker) generalityLoss(score float64) float64 {
	if b.best == 0 {
		return 0
	}
	if b.lowerIsBetter {
		return score/b.best - 1
	}
	return 1 - score/b.best
}

// TolerantRule stops once the validation score is worse than the best by
// more than Threshold.
type TolerantRule struct {
	bestTracker
	Threshold float64
}

// CheckScore implements EarlyStoppingRule.
func (r *TolerantRule) CheckScore(validScore, _ float64) (bool, bool) {
	isBest := r.observe(validScore)
	if r.lowerIsBetter {
		return validScore-r.best > r.Threshold, isBest
	}
	return r.best-validScore > r.Threshold, isBest
}

// GeneralityLossRule (GL) stops once the relative loss of generality
// exceeds Threshold.
type GeneralityLossRule struct {
	bestTracker
	Threshold float64
}

// CheckScore implements EarlyStoppingRule.
func (r *GeneralityLossRule) CheckScore(validScore, _ float64) (bool, bool) {
	isBest := r.observe(validScore)
	return r.generalityLoss(validScore) > r.Threshold, isBest
}

// trainingWindow keeps the last size training scores.
type trainingWindow struct {
	size   int
	scores []float64
}

func (w *trainingWindow) push(score float64) {
	w.scores = append(w.scores, score)
	if len(w.scores) > w.size {
		w.scores = w.scores[1:]
	}
}

func (w *trainingWindow) full() bool { return len(w.scores) == w.size }

// progress measures how much the average of the window is above its best
// value; small progress means training has flattened out.
func (w *trainingWindow) progress(lowerIsBetter bool) float64 {
	avg := stat.Mean(w.scores, nil)
	if lowerIsBetter {
		best := floats.Min(w.scores)
		if best == 0 {
			return 0
		}
		return avg/best - 1
	}
	if avg == 0 {
		return 0
	}
	return floats.Max(w.scores)/avg - 1
}

// LowProgressRule (LP) stops once training progress over the last
// WindowSize iterations drops below Threshold.
type LowProgressRule struct {
	bestTracker
	window    trainingWindow
	Threshold float64
}

// CheckScore implements EarlyStoppingRule.
func (r *LowProgressRule) CheckScore(validScore, trainScore float64) (bool, bool) {
	isBest := r.observe(validScore)
	r.window.push(trainScore)
	if !r.window.full() {
		return false, isBest
	}
	return r.window.progress(r.lowerIsBetter) < r.Threshold, isBest
}

// GLProgressRule (PQ) stops once generality loss divided by training
// progress exceeds Threshold.
type GLProgressRule struct {
	bestTracker
	window    trainingWindow
	Threshold float64
}

// CheckScore implements EarlyStoppingRule.
func (r *GLProgressRule) CheckScore(validScore, trainScore float64) (bool, bool) {
	isBest := r.observe(validScore)
	r.window.push(trainScore)
	if !r.window.full() {
		return false, isBest
	}
	p := r.window.progress(r.lowerIsBetter)
	if p <= 0 {
		return false, isBest
	}
	return r.generalityLoss(validScore)/p > r.Threshold, isBest
}

// ConsecutiveGeneralityLossRule (UP) stops after WindowSize consecutive
// iterations in which the validation score got worse.
type ConsecutiveGeneralityLossRule struct {
	bestTracker
	WindowSize int

	prev    float64
	hasPrev bool
	streak  int
}

// CheckScore implements EarlyStoppingRule.
func (r *ConsecutiveGeneralityLossRule) CheckScore(validScore, _ float64) (bool, bool) {
	isBest := r.observe(validScore)
	if r.hasPrev && isBetter(r.prev, validScore, r.lowerIsBetter) {
		r.streak++
	} else {
		r.streak = 0
	}
	r.prev, r.hasPrev = validScore, true
	return r.streak >= r.WindowSize, isBest
}

// EarlyStoppingRuleSpec names a rule and its parameters, e.g. in a
// configuration file.
type EarlyStoppingRuleSpec struct {
	Name       string  `yaml:"name"`
	Threshold  float64 `yaml:"threshold"`
	WindowSize int     `yaml:"window_size"`
}

// Factory validates the parameters and returns the rule factory. Names are
// tolerant, gl, lp, pq and up.
func (s EarlyStoppingRuleSpec) Factory() (EarlyStoppingRuleFactory, error) {
	if s.Threshold < 0 {
		return nil, ftErrors.NewValidationError("EarlyStoppingRule.Threshold", "must be >= 0", s.Threshold)
	}
	needsWindow := func() error {
		if s.WindowSize < 1 {
			return ftErrors.NewValidationError("EarlyStoppingRule.WindowSize", "must be >= 1", s.WindowSize)
		}
		return nil
	}
	switch strings.ToLower(s.Name) {
	case "tolerant":
		return func(lower bool) EarlyStoppingRule {
			return &TolerantRule{bestTracker: bestTracker{lowerIsBetter: lower}, Threshold: s.Threshold}
		}, nil
	case "gl":
		return func(lower bool) EarlyStoppingRule {
			return &GeneralityLossRule{bestTracker: bestTracker{lowerIsBetter: lower}, Threshold: s.Threshold}
		}, nil
	case "lp":
		if err := needsWindow(); err != nil {
			return nil, err
		}
		return func(lower bool) EarlyStoppingRule {
			return &LowProgressRule{bestTracker: bestTracker{lowerIsBetter: lower}, window: trainingWindow{size: s.WindowSize}, Threshold: s.Threshold}
		}, nil
	case "pq":
		if err := needsWindow(); err != nil {
			return nil, err
		}
		return func(lower bool) EarlyStoppingRule {
			return &GLProgressRule{bestTracker: bestTracker{lowerIsBetter: lower}, window: trainingWindow{size: s.WindowSize}, Threshold: s.Threshold}
		}, nil
	case "up":
		if err := needsWindow(); err != nil {
			return nil, err
		}
		return func(lower bool) EarlyStoppingRule {
			return &ConsecutiveGeneralityLossRule{bestTracker: bestTracker{lowerIsBetter: lower}, WindowSize: s.WindowSize}
		}, nil
	default:
		return nil, ftErrors.NewValidationError("EarlyStoppingRule.Name", "must be one of tolerant, gl, lp, pq, up", s.Name)
	}
}
