// Package quality grades a reconstruction and turns its weak points into
// recommendations for the next recording.
package quality

import (
	"fmt"
	"strings"

	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/mesh"
)

// MeshQuality is the tier of the refined mesh.
type MeshQuality string

const (
	// MeshQualityExcellent requires a dense, watertight mesh.
	MeshQualityExcellent MeshQuality = "excellent"
	MeshQualityGood      MeshQuality = "good"
	MeshQualityFair      MeshQuality = "fair"
	MeshQualityPoor      MeshQuality = "poor"
)

// Rank orders tiers from poor (0) to excellent (3).
func (q MeshQuality) Rank() int {
	switch q {
	case MeshQualityExcellent:
		return 3
	case MeshQualityGood:
		return 2
	case MeshQualityFair:
		return 1
	default:
		return 0
	}
}

// Confidence is the trust placed in the measurement values.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// lower drops confidence by one level.
func (c Confidence) lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Thresholds are the vertex counts a mesh must exceed for each tier.
type Thresholds struct {
	ExcellentVertices int
	GoodVertices      int
	FairVertices      int
	// MaxTiltDeg is the body-axis lean above which a posture
	// recommendation is made. Zero disables the check.
	MaxTiltDeg float64
}

// DefaultThresholds returns the stock tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{ExcellentVertices: 500, GoodVertices: 200, FairVertices: 100, MaxTiltDeg: 15}
}

// Report is the outcome of an assessment.
type Report struct {
	MeshQuality     MeshQuality `json:"mesh_quality"`
	Confidence      Confidence  `json:"measurement_confidence"`
	Recommendations []string    `json:"recommendations"`
}

// ClassifyMesh maps mesh statistics to a tier. Only a watertight mesh
// can be excellent.
func ClassifyMesh(st mesh.Stats, th Thresholds) MeshQuality {
	switch {
	case st.Vertices > th.ExcellentVertices && st.Watertight:
		return MeshQualityExcellent
	case st.Vertices > th.GoodVertices:
		return MeshQualityGood
	case st.Vertices > th.FairVertices:
		return MeshQualityFair
	default:
		return MeshQualityPoor
	}
}

// Assess grades the mesh and the measurements. It always returns a report.
func Assess(st mesh.Stats, meta measure.Metadata, th Thresholds) Report {
	q := ClassifyMesh(st, th)

	c := ConfidenceLow
	if q.Rank() >= MeshQualityGood.Rank() {
		c = ConfidenceMedium
		if meta.CalibrationApplied {
			c = ConfidenceHigh
		}
	}
	if meta.Degraded() {
		c = c.lower()
	}

	in := input{stats: st, meta: meta, quality: q, confidence: c, th: th}
	var recs []string
	for _, r := range rules {
		if r.when(in) {
			recs = append(recs, r.say(in)...)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, msgAllGood)
	}
	return Report{MeshQuality: q, Confidence: c, Recommendations: recs}
}

type input struct {
	stats      mesh.Stats
	meta       measure.Metadata
	quality    MeshQuality
	confidence Confidence
	th         Thresholds
}

const (
	msgLighting     = "Mesh quality is low. Try recording video with better lighting."
	msgFullBody     = "Ensure full body is visible throughout the video."
	msgReference    = "Low measurement confidence. Provide reference height for better accuracy."
	msgDegenerate   = "Reference height could not be applied because the head and feet were not separated. Keep head and feet in frame."
	msgHoles        = "3D model has holes. This may affect volume-based measurements."
	msgAllGood      = "Measurements appear accurate. 3D model quality is good."
	msgArmsAway     = "Could not measure %s. Stand with arms slightly away from the body."
	msgMissing      = "Landmarks needed for %s were not detected."
	msgStandUpright = "Body appears tilted by %.0f degrees. Stand upright facing the camera."
)

type rule struct {
	when func(input) bool
	say  func(input) []string
}

func fixed(msgs ...string) func(input) []string {
	return func(input) []string { return msgs }
}

// rules are evaluated in order; every matching rule contributes.
var rules = []rule{
	{
		when: func(in input) bool { return in.quality == MeshQualityPoor },
		say:  fixed(msgLighting, msgFullBody),
	},
	{
		when: func(in input) bool { return in.confidence == ConfidenceLow && !in.meta.ReferenceHeightProvided },
		say:  fixed(msgReference),
	},
	{
		when: func(in input) bool { return in.meta.ReferenceHeightProvided && !in.meta.CalibrationApplied },
		say:  fixed(msgDegenerate),
	},
	{
		when: func(in input) bool { return !in.stats.Watertight },
		say:  fixed(msgHoles),
	},
	{
		when: func(in input) bool { return len(in.meta.ZeroCircumferences) > 0 },
		say: func(in input) []string {
			return []string{fmt.Sprintf(msgArmsAway, joinNames(in.meta.ZeroCircumferences))}
		},
	},
	{
		when: func(in input) bool { return len(in.meta.Unavailable) > 0 },
		say: func(in input) []string {
			var names []measure.Name
			for _, n := range measure.Taxonomy {
				if _, ok := in.meta.Unavailable[n]; ok {
					names = append(names, n)
				}
			}
			return []string{fmt.Sprintf(msgMissing, joinNames(names))}
		},
	},
	{
		when: func(in input) bool {
			return in.th.MaxTiltDeg > 0 && in.meta.BodyAxisTiltDeg != nil && *in.meta.BodyAxisTiltDeg > in.th.MaxTiltDeg
		},
		say: func(in input) []string {
			return []string{fmt.Sprintf(msgStandUpright, *in.meta.BodyAxisTiltDeg)}
		},
	},
}

func joinNames(names []measure.Name) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = strings.ReplaceAll(string(n), "_", " ")
	}
	return strings.Join(s, ", ")
}
