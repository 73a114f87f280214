package fasttree

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// SaveLearningCurve plots the train and validation metric of history
// against the iteration and writes the image to path. The format follows
// the file extension (png, svg, pdf...).
func SaveLearningCurve(history []GraphPoint, title, path string) error {
	if len(history) == 0 {
		return ftErrors.NewValueError("SaveLearningCurve", "empty history")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = history[0].Metric

	var train, valid plotter.XYs
	for _, g := range history {
		if !math.IsNaN(g.Train) {
			train = append(train, plotter.XY{X: float64(g.Iteration), Y: g.Train})
		}
		if !math.IsNaN(g.Valid) {
			valid = append(valid, plotter.XY{X: float64(g.Iteration), Y: g.Valid})
		}
	}

	var lines []interface{}
	if len(train) > 0 {
		lines = append(lines, "Train", train)
	}
	if len(valid) > 0 {
		lines = append(lines, "Valid", valid)
	}
	if len(lines) == 0 {
		return ftErrors.NewValueError("SaveLearningCurve", "history has no finite points")
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return ftErrors.Wrap(err, "adding learning curve")
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
