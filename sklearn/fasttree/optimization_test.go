package fasttree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

func newTestOptimizer(t *testing.T, train *Dataset, kind AlgorithmKind) *OptimizationAlgorithm {
	t.Helper()
	tr, err := NewScoreTracker("train", train, nil, 2)
	require.NoError(t, err)
	obj := NewRegressionObjective(train, ObjectiveOptions{LearningRate: 0.3, Shrinkage: 1, MaxTreeOutput: 100, NumThreads: 2})
	learner := NewLeastSquaresTreeLearner(train, TreeLearnerOptions{NumLeaves: 4, MinDocsInLeaf: 2, MaxBins: 64, NumThreads: 2})
	return NewOptimizationAlgorithm(kind, NewEnsemble(), tr, obj, learner, &trivialGradientWrapper{})
}

func assertScoresMatchEnsemble(t *testing.T, tr *ScoreTracker, e *Ensemble) {
	t.Helper()
	scores, err := tr.Scores()
	require.NoError(t, err)
	expected := e.RawScores(tr.Dataset().Features())
	assert.InDeltaSlice(t, expected, scores, 1e-9)
}

func TestAlgorithmKindText(t *testing.T) {
	for _, k := range []AlgorithmKind{GradientDescent, AcceleratedGradientDescent, ConjugateGradientDescent} {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back AlgorithmKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}
	var k AlgorithmKind
	require.NoError(t, k.UnmarshalText([]byte("ConjugateGradientDescent")))
	assert.Equal(t, ConjugateGradientDescent, k)
	assert.Error(t, k.UnmarshalText([]byte("newton")))
}

func TestDirectionStrategies(t *testing.T) {
	t.Run("gd", func(t *testing.T) {
		g := []float64{1, 2}
		assert.Equal(t, g, gdDirection{}.Direction(g))
	})

	t.Run("agd", func(t *testing.T) {
		d := &agdDirection{}
		first := append([]float64(nil), d.Direction([]float64{4, 0})...)
		assert.Equal(t, []float64{4, 0}, first)
		// t = 2: momentum (t−1)/(t+2) = 1/4
		assert.Equal(t, []float64{1, 1}, d.Direction([]float64{0, 1}))
		// t = 3: momentum 2/5
		assert.InDeltaSlice(t, []float64{0.4, 0.4}, d.Direction([]float64{0, 0}), 1e-12)
	})

	t.Run("cgd", func(t *testing.T) {
		d := &cgdDirection{}
		assert.Equal(t, []float64{1, 0}, d.Direction([]float64{1, 0}))
		// β = g2·(g2−g1) / g1·g1 = 1
		assert.Equal(t, []float64{1, 1}, d.Direction([]float64{0, 1}))
		assert.Equal(t, []float64{2, 2}, d.Direction([]float64{1, 1}))

		restart := &cgdDirection{}
		restart.Direction([]float64{1, 0})
		// β would be −0.25, so the direction restarts at the gradient
		assert.Equal(t, []float64{0.5, 0}, restart.Direction([]float64{0.5, 0}))
	})
}

func TestTrainingIterationReducesLoss(t *testing.T) {
	train := syntheticLinear(t, 200, 1, "train")
	for _, kind := range []AlgorithmKind{GradientDescent, AcceleratedGradientDescent, ConjugateGradientDescent} {
		t.Run(kind.String(), func(t *testing.T) {
			opt := newTestOptimizer(t, train, kind)
			scores, _ := opt.TrainingScores.Scores()
			start := opt.Objective.Loss(scores)

			for i := 0; i < 5; i++ {
				tree, err := opt.TrainingIteration(nil)
				require.NoError(t, err)
				require.NotNil(t, tree)
			}
			assert.Equal(t, 5, opt.Ensemble.NumTrees())
			assertScoresMatchEnsemble(t, opt.TrainingScores, opt.Ensemble)

			scores, _ = opt.TrainingScores.Scores()
			assert.Less(t, opt.Objective.Loss(scores), start)
		})
	}
}

func TestTrainingIterationDropoutKeepsTrackersInSync(t *testing.T) {
	train := syntheticLinear(t, 150, 2, "train")
	valid := syntheticLinear(t, 60, 3, "valid")

	opt := newTestOptimizer(t, train, GradientDescent)
	opt.DropoutRate = 0.5
	opt.DropoutSeed = 42
	validScores, err := NewScoreTracker("valid", valid, nil, 2)
	require.NoError(t, err)
	opt.TrackScores(validScores)
	opt.TrackScores(validScores)
	require.Len(t, opt.Trackers(), 2)

	for i := 0; i < 6; i++ {
		_, err := opt.TrainingIteration(nil)
		require.NoError(t, err)
		assertScoresMatchEnsemble(t, opt.TrainingScores, opt.Ensemble)
		assertScoresMatchEnsemble(t, validScores, opt.Ensemble)
	}
	assert.Equal(t, 6, opt.Ensemble.NumTrees())
}

func TestSelectDroppedIsDeterministic(t *testing.T) {
	train := syntheticLinear(t, 50, 4, "train")
	opt := newTestOptimizer(t, train, GradientDescent)
	assert.Nil(t, opt.selectDropped(0), "nothing to drop from an empty ensemble")

	for i := 0; i < 10; i++ {
		opt.Ensemble.AddTree(NewRegressionTree())
	}
	assert.Nil(t, opt.selectDropped(3), "dropout disabled")

	opt.DropoutRate = 0.01
	opt.DropoutSeed = 9
	a := opt.selectDropped(3)
	assert.NotEmpty(t, a, "at least one tree is dropped")
	assert.Equal(t, a, opt.selectDropped(3))
	for _, i := range a {
		assert.Less(t, i, 10)
	}
}

func TestPreScoreUpdateRunsBeforeScoresChange(t *testing.T) {
	train := syntheticLinear(t, 80, 5, "train")
	opt := newTestOptimizer(t, train, GradientDescent)

	var versions []uint64
	opt.PreScoreUpdate = func() {
		versions = append(versions, opt.TrainingScores.Version())
		assert.Equal(t, len(versions)-1, opt.Ensemble.NumTrees(), "the tree is appended after the update")
	}
	for i := 0; i < 3; i++ {
		_, err := opt.TrainingIteration(nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{0, 1, 2}, versions)
	assert.Equal(t, uint64(3), opt.TrainingScores.Version())
}

func TestTrainingIterationReportsNonFiniteGradients(t *testing.T) {
	train := syntheticLinear(t, 20, 6, "train")
	opt := newTestOptimizer(t, train, GradientDescent)
	scores := make([]float64, train.NumDocs())
	scores[3] = math.NaN()
	require.NoError(t, opt.TrainingScores.SetScores(scores))

	_, err := opt.TrainingIteration(nil)
	var nerr *ftErrors.NumericalInstabilityError
	require.True(t, ftErrors.As(err, &nerr))
	assert.Equal(t, "gradient", nerr.Operation)
	assert.Equal(t, 0, opt.Ensemble.NumTrees())
}
