// Package report renders views of a pipeline result: a structured
// summary, a plain-text report, JSON, an HTML chart page and a PNG plot
// of the circumference cross-sections. Every view is derived from the
// result alone.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
)

// KeyMeasurements are the values shown in the summary.
var KeyMeasurements = []measure.Name{
	measure.Height,
	measure.ShoulderWidth,
	measure.ChestCircumference,
	measure.WaistCircumference,
	measure.HipCircumference,
	measure.Inseam,
	measure.ArmLength,
}

// Summary is the short form of a result.
type Summary struct {
	Unit            string            `json:"unit"`
	Measurements    map[string]string `json:"measurements"`
	MeshQuality     string            `json:"mesh_quality"`
	Confidence      string            `json:"measurement_confidence"`
	Recommendations []string          `json:"recommendations"`
	FramesUsed      int               `json:"frames_used"`
}

// NewSummary extracts the key measurements and quality verdict.
func NewSummary(res *pipeline.Result) Summary {
	s := Summary{
		Unit:            string(res.Calibration.Unit()),
		Measurements:    make(map[string]string),
		MeshQuality:     string(res.Quality.MeshQuality),
		Confidence:      string(res.Quality.Confidence),
		Recommendations: res.Quality.Recommendations,
		FramesUsed:      res.Processing.FramesAggregated,
	}
	if res.Measurements == nil {
		return s
	}
	for _, n := range KeyMeasurements {
		if v, ok := res.Measurements.Format(n); ok {
			s.Measurements[string(n)] = v
		}
	}
	return s
}

// WriteJSON writes the full result bundle as indented JSON.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// FullText writes a human-readable report.
func FullText(w io.Writer, res *pipeline.Result) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "BODY MEASUREMENT REPORT")
	fmt.Fprintln(&b, rule)

	v := res.Video
	fmt.Fprintf(&b, "\nSource: %s\n", v.Source)
	if v.FPS > 0 {
		fmt.Fprintf(&b, "Video: %dx%d, %.1f fps, %.1f s\n", v.Width, v.Height, v.FPS, v.DurationSec)
	}
	p := res.Processing
	fmt.Fprintf(&b, "Frames: %d sampled, %d with detections, %d rejected, %d used\n",
		p.FramesSampled, p.FramesWithDetections, p.FramesRejected, p.FramesAggregated)

	m := res.Mesh
	fmt.Fprintf(&b, "\nMesh: %d vertices, %d faces (%s, watertight=%t)\n", m.Vertices, m.Faces, m.Construction, m.Watertight)
	c := res.Calibration
	switch {
	case c.Applied:
		fmt.Fprintf(&b, "Calibration: factor %.4f from reference height %.1f cm\n", c.Value, *c.ReferenceHeightCm)
	case c.Degenerate:
		fmt.Fprintln(&b, "Calibration: reference height ignored, height proxy is degenerate")
	default:
		fmt.Fprintln(&b, "Calibration: none, values are in scaffold units")
	}

	fmt.Fprintf(&b, "\nMEASUREMENTS\n%s\n", strings.Repeat("-", 60))
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	if set := res.Measurements; set != nil {
		for _, n := range measure.Taxonomy {
			if s, ok := set.Format(n); ok {
				fmt.Fprintf(tw, "%s\t%s\n", n.Label(), s)
			}
		}
		meta := set.Metadata()
		for _, n := range measure.Taxonomy {
			if reason, ok := meta.Unavailable[n]; ok {
				fmt.Fprintf(tw, "%s\tunavailable (%s)\n", n.Label(), reason)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	q := res.Quality
	fmt.Fprintf(&b, "\nQUALITY\n%s\n", strings.Repeat("-", 60))
	fmt.Fprintf(&b, "Mesh quality: %s\nConfidence: %s\n", q.MeshQuality, q.Confidence)
	if len(q.Recommendations) > 0 {
		fmt.Fprintln(&b, "\nRecommendations:")
		for i, r := range q.Recommendations {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, r)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
