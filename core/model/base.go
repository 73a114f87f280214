// Package model provides the estimator abstractions shared by the trainers:
//
//   - Fitter, Predictor and Regressor interfaces over gonum matrices
//   - StateManager: thread-safe fitted-state tracking
//   - Model persistence with encoding/gob, including a versioned header so
//     that files written by a newer build are rejected with a clear error
//
// Example usage:
//
//	type MyRegressor struct {
//		state *model.StateManager
//	}
//
//	func (m *MyRegressor) Fit(X, y mat.Matrix) error {
//		// training logic
//		m.state.SetFitted()
//		return nil
//	}
package model

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// Fitter learns from a feature matrix and a target column.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor produces one prediction per row of X.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is a fitted-state aware regression estimator.
type Regressor interface {
	Fitter
	Predictor
	Score(X, y mat.Matrix) (float64, error)
	IsFitted() bool
}

// StateManager tracks whether a model has been fitted. It is composed into
// estimators rather than embedded.
type StateManager struct {
	Fitted bool // exported for gob
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset returns the model to the unfitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the training shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming modelName and method when
// the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return ftErrors.NewNotFittedError(modelName, method)
	}
	return nil
}
