package errors_test

import (
	"errors"
	"fmt"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// Example_customErrorTypes shows how to recover structured details from a
// wrapped error.
func Example_customErrorTypes() {
	dimErr := ftErrors.NewDimensionError("Predict", 5, 3, 1)
	wrappedErr := fmt.Errorf("scoring failed: %w", dimErr)

	var dimensionErr *ftErrors.DimensionError
	if errors.As(wrappedErr, &dimensionErr) {
		fmt.Printf("Dimension error: expected %d, got %d\n", dimensionErr.Expected, dimensionErr.Got)
	}

	// Output: Dimension error: expected 5, got 3
}

// Example_validation shows the error returned for inconsistent options.
func Example_validation() {
	err := ftErrors.NewValidationError("EnablePruning", "pruning requires a validation set", true)

	var valErr *ftErrors.ValidationError
	if errors.As(err, &valErr) {
		fmt.Println(valErr.ParamName)
	}
	fmt.Println(err)

	// Output: EnablePruning
	// fasttree: validation failed for parameter 'EnablePruning': pruning requires a validation set (got: true)
}

// Example_errorLogging shows the message produced by a chained model error.
func Example_errorLogging() {
	baseErr := ftErrors.NewModelError("TrainingIteration", "line search failed", ftErrors.ErrEmptyData)
	opErr := fmt.Errorf("iteration 150: %w", baseErr)

	fmt.Printf("Error occurred in boosting: %v\n", opErr)

	// Output: Error occurred in boosting: iteration 150: fasttree: TrainingIteration: line search failed: empty data
}
