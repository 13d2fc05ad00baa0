package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
)

// echartsAssetsHost serves the echarts scripts referenced by the page.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WriteHTML renders a page with a bar chart of the linear measurements
// and one of the circumferences.
func WriteHTML(w io.Writer, res *pipeline.Result) error {
	if res.Measurements == nil {
		return fmt.Errorf("result has no measurements")
	}
	set := res.Measurements
	unit := string(res.Calibration.Unit())
	subtitle := fmt.Sprintf("mesh=%s confidence=%s unit=%s", res.Quality.MeshQuality, res.Quality.Confidence, unit)

	var lengthNames, circNames []string
	var lengths, circs []opts.BarData
	for _, n := range set.Names() {
		switch n.Kind() {
		case measure.KindLength:
			lengthNames = append(lengthNames, n.Label())
			lengths = append(lengths, opts.BarData{Value: round2(set.Value(n))})
		case measure.KindCircumference:
			circNames = append(circNames, n.Label())
			circs = append(circs, opts.BarData{Value: round2(set.Value(n))})
		}
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(
		newBar("Lengths", subtitle, unit, lengthNames, lengths),
		newBar("Circumferences", subtitle, unit, circNames, circs),
	)
	return page.Render(w)
}

func newBar(title, subtitle, unit string, x []string, y []opts.BarData) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	bar.SetXAxis(x).
		AddSeries(title, y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
