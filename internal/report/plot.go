package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/bodymeasure/internal/pipeline"
)

// WriteSlicePlot draws the convex hull of every non-degenerate
// circumference slice, viewed from above, as a PNG.
func WriteSlicePlot(w io.Writer, res *pipeline.Result) error {
	if res.Measurements == nil {
		return fmt.Errorf("result has no measurements")
	}
	f := res.Calibration
	unit := string(f.Unit())

	p := plot.New()
	p.Title.Text = "Circumference cross-sections"
	p.X.Label.Text = fmt.Sprintf("X (%s)", unit)
	p.Y.Label.Text = fmt.Sprintf("Z (%s)", unit)
	p.Add(plotter.NewGrid())

	drawn := 0
	for i, s := range res.Measurements.Metadata().Slices {
		if s.Degenerate() {
			continue
		}
		pts := make(plotter.XYs, 0, len(s.Hull)+1)
		for _, v := range s.Hull {
			pts = append(pts, plotter.XY{X: f.Linear(v.X), Y: f.Linear(v.Y)})
		}
		pts = append(pts, pts[0])

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (%.2f %s)", s.Name.Label(), f.Linear(s.Perimeter), unit), line)
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("no cross-section has enough vertices to plot")
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
