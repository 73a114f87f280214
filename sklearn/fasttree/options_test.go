package fasttree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

func neverStop(bool) EarlyStoppingRule {
	return &TolerantRule{Threshold: 1e300}
}

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.CheckArgs(false))
	assert.False(t, opts.UseLineSearch)
	assert.Equal(t, 1.0, opts.Shrinkage)
}

func TestCheckArgsRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		param  string
	}{
		{"trees", func(o *Options) { o.NumTrees = 0 }, "NumTrees"},
		{"leaves", func(o *Options) { o.NumLeaves = 1 }, "NumLeaves"},
		{"learning rate", func(o *Options) { o.LearningRate = 0 }, "LearningRate"},
		{"feature fraction", func(o *Options) { o.FeatureFraction = 1.5 }, "FeatureFraction"},
		{"smoothing", func(o *Options) { o.Smoothing = 1 }, "Smoothing"},
		{"dropout", func(o *Options) { o.DropoutRate = -0.1 }, "DropoutRate"},
		{"pruning window", func(o *Options) { o.PruningWindowSize = 0 }, "PruningWindowSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.CheckArgs(true)
			var verr *ftErrors.ValidationError
			require.True(t, ftErrors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestCheckArgsDependencies(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Options)
		hasValid bool
		param    string
	}{
		{"pruning without valid set", func(o *Options) { o.EnablePruning = true }, false, "EnablePruning"},
		{"early stopping without valid set", func(o *Options) { o.EarlyStoppingRule = neverStop }, false, "EarlyStoppingRule"},
		{"tolerant pruning without pruning", func(o *Options) { o.UseTolerantPruning = true }, true, "UseTolerantPruning"},
		{"tolerant pruning without valid set", func(o *Options) { o.UseTolerantPruning = true }, false, "UseTolerantPruning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.CheckArgs(tt.hasValid)
			var verr *ftErrors.ValidationError
			require.True(t, ftErrors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}

	opts := DefaultOptions()
	opts.EnablePruning = true
	opts.UseTolerantPruning = true
	opts.EarlyStoppingRule = neverStop
	assert.NoError(t, opts.CheckArgs(true))
}

func TestCheckArgsNormalizes(t *testing.T) {
	for _, kind := range []AlgorithmKind{AcceleratedGradientDescent, ConjugateGradientDescent} {
		opts := DefaultOptions()
		opts.OptimizationAlgorithm = kind
		require.NoError(t, opts.CheckArgs(false))
		assert.True(t, opts.UseLineSearch, kind.String())
	}

	opts := DefaultOptions()
	opts.LearningRate = 0.25
	opts.DropoutRate = 0.1
	require.NoError(t, opts.CheckArgs(false))
	assert.Equal(t, 4.0, opts.Shrinkage)
}
