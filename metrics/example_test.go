package metrics_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/TomFinley/machinelearning/metrics"
)

func ExampleL2() {
	labels := []float64{1.0, 2.0, 3.0, 4.0}
	preds := []float64{1.1, 1.9, 3.2, 3.8}

	l2, err := metrics.L2(labels, preds, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("L2: %.3f\n", l2)

	// Output: L2: 0.025
}

func ExampleRMS() {
	rms, _ := metrics.RMS([]float64{10, 20, 30}, []float64{12, 18, 32}, nil)
	fmt.Printf("RMS: %.2f\n", rms)

	// Output: RMS: 2.00
}

func ExampleL1() {
	l1, _ := metrics.L1([]float64{1, 2, 3, 4}, []float64{0.8, 2.2, 2.9, 4.3}, nil)
	fmt.Printf("L1: %.2f\n", l1)

	// Output: L1: 0.20
}

func ExampleR2Score() {
	yTrue := mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0})
	yPred := mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0})

	r2, _ := metrics.R2Score(yTrue, yPred)
	fmt.Printf("R² Score: %.1f\n", r2)

	// Output: R² Score: 1.0
}
