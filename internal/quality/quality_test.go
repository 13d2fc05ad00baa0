package quality

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/mesh"
)

func calibrated() measure.Metadata {
	return measure.Metadata{CalibrationFactor: 100, CalibrationApplied: true, ReferenceHeightProvided: true}
}

func TestClassifyMesh(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	tests := []struct {
		vertices   int
		watertight bool
		want       MeshQuality
	}{
		{501, true, MeshQualityExcellent},
		{501, false, MeshQualityGood},
		{500, true, MeshQualityGood}, // at threshold
		{201, true, MeshQualityGood},
		{200, true, MeshQualityFair},
		{101, false, MeshQualityFair},
		{100, true, MeshQualityPoor},
		{0, false, MeshQualityPoor},
	}
	for _, tt := range tests {
		got := ClassifyMesh(mesh.Stats{Vertices: tt.vertices, Watertight: tt.watertight}, th)
		assert.Equal(t, tt.want, got, "vertices=%d watertight=%v", tt.vertices, tt.watertight)
	}
}

func TestAssess_Confidence(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	dense := mesh.Stats{Vertices: 800, Watertight: true}
	sparse := mesh.Stats{Vertices: 50, Watertight: true}

	tests := []struct {
		name  string
		stats mesh.Stats
		meta  measure.Metadata
		want  Confidence
	}{
		{"dense and calibrated", dense, calibrated(), ConfidenceHigh},
		{"dense without reference", dense, measure.Metadata{CalibrationFactor: 1}, ConfidenceMedium},
		{"dense with degenerate calibration", dense, measure.Metadata{CalibrationFactor: 1, ReferenceHeightProvided: true}, ConfidenceMedium},
		{"sparse and calibrated", sparse, calibrated(), ConfidenceLow},
		{"zero circumference lowers high", dense, func() measure.Metadata {
			m := calibrated()
			m.ZeroCircumferences = []measure.Name{measure.WaistCircumference}
			return m
		}(), ConfidenceMedium},
		{"missing landmark lowers medium", dense, measure.Metadata{Unavailable: map[measure.Name]string{measure.Inseam: "x"}}, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assess(tt.stats, tt.meta, th).Confidence)
		})
	}
}

func TestAssess_Recommendations(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	t.Run("all good", func(t *testing.T) {
		r := Assess(mesh.Stats{Vertices: 800, Watertight: true}, calibrated(), th)
		assert.Equal(t, MeshQualityExcellent, r.MeshQuality)
		assert.Equal(t, []string{msgAllGood}, r.Recommendations)
	})

	t.Run("poor open mesh without reference", func(t *testing.T) {
		r := Assess(mesh.Stats{Vertices: 22}, measure.Metadata{CalibrationFactor: 1}, th)
		want := []string{msgLighting, msgFullBody, msgReference, msgHoles}
		if diff := cmp.Diff(want, r.Recommendations); diff != "" {
			t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("degenerate calibration", func(t *testing.T) {
		r := Assess(mesh.Stats{Vertices: 300, Watertight: true}, measure.Metadata{CalibrationFactor: 1, ReferenceHeightProvided: true}, th)
		assert.Equal(t, []string{msgDegenerate}, r.Recommendations)
		assert.NotEqual(t, ConfidenceHigh, r.Confidence)
	})

	t.Run("soft measurement failures", func(t *testing.T) {
		tilt := 25.0
		meta := calibrated()
		meta.ZeroCircumferences = []measure.Name{measure.ChestCircumference, measure.HipCircumference}
		meta.Unavailable = map[measure.Name]string{measure.Inseam: "x", measure.Height: "y"}
		meta.BodyAxisTiltDeg = &tilt

		r := Assess(mesh.Stats{Vertices: 800, Watertight: true}, meta, th)
		want := []string{
			"Could not measure chest circumference, hip circumference. Stand with arms slightly away from the body.",
			"Landmarks needed for height, inseam were not detected.",
			"Body appears tilted by 25 degrees. Stand upright facing the camera.",
		}
		if diff := cmp.Diff(want, r.Recommendations); diff != "" {
			t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tilt check disabled", func(t *testing.T) {
		tilt := 40.0
		meta := calibrated()
		meta.BodyAxisTiltDeg = &tilt
		noTilt := th
		noTilt.MaxTiltDeg = 0
		r := Assess(mesh.Stats{Vertices: 800, Watertight: true}, meta, noTilt)
		assert.Equal(t, []string{msgAllGood}, r.Recommendations)
	})
}

func TestMeshQualityRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, MeshQualityExcellent.Rank(), MeshQualityGood.Rank())
	assert.Greater(t, MeshQualityGood.Rank(), MeshQualityFair.Rank())
	assert.Greater(t, MeshQualityFair.Rank(), MeshQualityPoor.Rank())
	assert.Equal(t, 0, MeshQuality("bogus").Rank())
}
