package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// TestErrorWrappingCompatibility checks that our types survive fmt.Errorf wrapping.
func TestErrorWrappingCompatibility(t *testing.T) {
	originalErr := ftErrors.NewNotFittedError("TweedieRegressor", "Predict")
	wrappedErr := fmt.Errorf("pipeline step failed: %w", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Errorf("errors.Is failed to identify wrapped error")
	}

	var notFittedErr *ftErrors.NotFittedError
	if !errors.As(wrappedErr, &notFittedErr) {
		t.Fatalf("errors.As failed to extract NotFittedError")
	}
	if notFittedErr.ModelName != "TweedieRegressor" {
		t.Errorf("expected ModelName 'TweedieRegressor', got '%s'", notFittedErr.ModelName)
	}
}

func TestCombinedErrorTypes(t *testing.T) {
	stdErr := fmt.Errorf("standard error")
	customErr := ftErrors.NewModelError("TrainingIteration", "tree learner failed", stdErr)
	wrappedErr := fmt.Errorf("operation context: %w", customErr)

	if !errors.Is(wrappedErr, stdErr) {
		t.Errorf("failed to find standard error in chain")
	}

	var modelErr *ftErrors.ModelError
	require.True(t, errors.As(wrappedErr, &modelErr))
	assert.Equal(t, stdErr, modelErr.Unwrap())
}

func TestSentinelErrors(t *testing.T) {
	err := ftErrors.NewModelError("NewDataset", "empty data", ftErrors.ErrEmptyData)
	assert.True(t, errors.Is(err, ftErrors.ErrEmptyData))

	wrappedErr := fmt.Errorf("loading failed: %w", err)
	assert.True(t, ftErrors.Is(wrappedErr, ftErrors.ErrEmptyData))

	gate := ftErrors.Wrap(ftErrors.ErrScoresUpdating, "valid")
	assert.True(t, ftErrors.Is(gate, ftErrors.ErrScoresUpdating))
	assert.False(t, ftErrors.Is(gate, ftErrors.ErrEmptyData))
}

func TestVersionError(t *testing.T) {
	err := ftErrors.NewVersionError("FTREE", 0x00010001, 0x00010002, "file needs a newer reader")

	var verErr *ftErrors.VersionError
	require.True(t, ftErrors.As(err, &verErr))
	assert.Equal(t, "FTREE", verErr.Signature)
	assert.Contains(t, err.Error(), "0x00010001")
	assert.Contains(t, err.Error(), "newer reader")
}

func TestWarnRoutesToHandler(t *testing.T) {
	var got []error
	ftErrors.SetWarningHandler(func(w error) { got = append(got, w) })
	defer ftErrors.SetWarningHandler(func(error) {})

	ftErrors.Warn(ftErrors.NewDataConversionWarning("label", 3, "negative labels clamped to 0"))

	require.Len(t, got, 1)
	var dc *ftErrors.DataConversionWarning
	require.True(t, errors.As(got[0], &dc))
	assert.Equal(t, 3, dc.Count)
	assert.Contains(t, got[0].Error(), "3 value(s) of label")
}

func TestRecover(t *testing.T) {
	t.Run("panic becomes error", func(t *testing.T) {
		err := ftErrors.SafeExecute("Boom", func() error {
			panic("index out of range")
		})
		var pe *ftErrors.PanicError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "Boom", pe.Operation)
		assert.NotEmpty(t, pe.StackTrace)
	})

	t.Run("no panic keeps error", func(t *testing.T) {
		want := errors.New("plain")
		err := ftErrors.SafeExecute("Quiet", func() error { return want })
		assert.Equal(t, want, err)
	})
}

func TestCheckNumericalStability(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{"finite", []float64{0, -1, 2.5}, false},
		{"nan", []float64{0, nan()}, true},
		{"inf", []float64{inf()}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ftErrors.CheckNumericalStability("gradient", tt.values, 7)
			if tt.wantErr {
				var ni *ftErrors.NumericalInstabilityError
				require.True(t, errors.As(err, &ni))
				assert.Equal(t, 7, ni.Iteration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, 2.0, ftErrors.ClipValue(5, -2, 2))
	assert.Equal(t, -2.0, ftErrors.ClipValue(-5, -2, 2))
	assert.Equal(t, 1.0, ftErrors.ClipValue(1, -2, 2))
}
