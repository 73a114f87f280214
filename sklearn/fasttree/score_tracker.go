package fasttree

import (
	"sync/atomic"

	"github.com/TomFinley/machinelearning/core/parallel"
	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// ScoreTracker holds the current raw score of every document of a dataset.
//
// The boosting loop is the only writer. Tests read through Scores between
// iterations; a read while an update is in progress fails with
// ErrScoresUpdating. Every completed update bumps Version, which readers use
// to memoize derived values.
type ScoreTracker struct {
	name    string
	data    *Dataset
	scores  []float64
	workers int

	updating atomic.Bool
	version  atomic.Uint64
}

// NewScoreTracker creates a tracker starting from initScores, or from zeros
// when initScores is nil.
func NewScoreTracker(name string, data *Dataset, initScores []float64, workers int) (*ScoreTracker, error) {
	scores := make([]float64, data.NumDocs())
	if initScores != nil {
		if len(initScores) != len(scores) {
			return nil, ftErrors.NewDimensionError("NewScoreTracker", len(scores), len(initScores), 0)
		}
		copy(scores, initScores)
	}
	return &ScoreTracker{name: name, data: data, scores: scores, workers: workers}, nil
}

// Name returns the tracker's name.
func (s *ScoreTracker) Name() string { return s.name }

// Dataset returns the tracked dataset.
func (s *ScoreTracker) Dataset() *Dataset { return s.data }

// Version returns the number of completed updates.
func (s *ScoreTracker) Version() uint64 { return s.version.Load() }

// Scores returns a read-only view of the scores.
func (s *ScoreTracker) Scores() ([]float64, error) {
	if s.updating.Load() {
		return nil, ftErrors.Wrapf(ftErrors.ErrScoresUpdating, "score tracker %s", s.name)
	}
	return s.scores, nil
}

func (s *ScoreTracker) beginUpdate() {
	s.updating.Store(true)
}

func (s *ScoreTracker) endUpdate() {
	s.version.Add(1)
	s.updating.Store(false)
}

// AddScores adds multiplier times the output of tree for every document,
// routing each document through the tree.
func (s *ScoreTracker) AddScores(tree *RegressionTree, multiplier float64) {
	s.beginUpdate()
	defer s.endUpdate()

	parallel.ParallelizeN(len(s.scores), s.workers, func(start, end int) {
		for i := start; i < end; i++ {
			s.scores[i] += multiplier * tree.Predict(s.data.Row(i))
		}
	})
}

// AddScoresFromPartition is AddScores for the training set, reusing the
// leaf assignment computed by the tree learner.
func (s *ScoreTracker) AddScoresFromPartition(tree *RegressionTree, p *DocumentPartitioning, multiplier float64) {
	s.beginUpdate()
	defer s.endUpdate()

	parallel.ParallelizeN(p.NumLeaves(), s.workers, func(start, end int) {
		for l := start; l < end; l++ {
			v := multiplier * tree.LeafValues[l]
			for _, d := range p.DocumentsInLeaf(l) {
				s.scores[d] += v
			}
		}
	})
}

// SetScores replaces all scores.
func (s *ScoreTracker) SetScores(scores []float64) error {
	if len(scores) != len(s.scores) {
		return ftErrors.NewDimensionError("SetScores", len(s.scores), len(scores), 0)
	}
	s.beginUpdate()
	copy(s.scores, scores)
	s.endUpdate()
	return nil
}
