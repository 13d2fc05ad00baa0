package pipeline

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/calibration"
	"github.com/banshee-data/bodymeasure/internal/config"
	"github.com/banshee-data/bodymeasure/internal/frame"
	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/mesh"
	"github.com/banshee-data/bodymeasure/internal/pose"
	"github.com/banshee-data/bodymeasure/internal/quality"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
	"github.com/banshee-data/bodymeasure/internal/testutil"
	"github.com/banshee-data/bodymeasure/internal/timeutil"
)

func heightCm(v float64) *float64 { return &v }

func request(rec *pose.Recording, ref *float64) Request {
	return Request{Frames: rec, Estimator: rec, ReferenceHeightCm: ref}
}

func assertStageError(t *testing.T, err error, stage Stage, kind Kind) *StageError {
	t.Helper()
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage, se.Stage)
	assert.Equal(t, kind, se.Kind)
	require.NotEmpty(t, se.Trace)
	assert.Equal(t, StageFailed, se.Trace[len(se.Trace)-1].Stage)
	return se
}

var allStages = []Stage{
	StageValidating, StageExtracting, StageScaffoldBuilding, StageMeshSynthesis,
	StageMeshRefinement, StageCalibrating, StageMeasuring, StageAssessing, StageDone,
}

func TestRun_StandingFigure(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 10), 30)
	res, err := New(DefaultConfig()).Run(context.Background(), request(rec, heightCm(180)))
	require.NoError(t, err)

	if diff := cmp.Diff(allStages, res.Stages()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 100.0, res.Calibration.Value)
	assert.True(t, res.Calibration.Applied)
	assert.InDelta(t, 180.0, res.Measurements.Value(measure.Height), 1e-9)
	assert.InDelta(t, 50.0, res.Measurements.Value(measure.ShoulderWidth), 1e-9)
	assert.Equal(t, calibration.UnitCentimetre, res.Measurements.Metadata().Unit)

	assert.Equal(t, 10, res.Processing.FramesSampled)
	assert.Equal(t, 10, res.Processing.FramesWithDetections)
	assert.Equal(t, 10, res.Processing.FramesAggregated)
	assert.Equal(t, 7, res.Processing.LandmarksPresent)
	assert.Equal(t, "delaunay", res.Mesh.Construction)
	require.NotNil(t, res.RefinedMesh)
	assert.Equal(t, len(res.RefinedMesh.Vertices), res.Mesh.Vertices)
	assert.NotEmpty(t, res.Quality.Recommendations)
}

func TestRun_WithoutReferenceUsesScaffoldUnits(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 3), 30)
	res, err := New(DefaultConfig()).Run(context.Background(), request(rec, nil))
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Calibration.Value)
	assert.False(t, res.Calibration.Applied)
	assert.Equal(t, calibration.UnitScaffold, res.Measurements.Metadata().Unit)
	assert.InDelta(t, 1.8, res.Measurements.Value(measure.Height), 1e-12)
	assert.NotEqual(t, quality.ConfidenceHigh, res.Quality.Confidence)
}

func TestRun_DegenerateCalibrationIsSoft(t *testing.T) {
	t.Parallel()

	var noNose landmark.Set
	for _, o := range testutil.StandingFigure(1) {
		if o.ID != landmark.Nose {
			noNose = append(noNose, o)
		}
	}
	rec := testutil.Recording(testutil.RepeatFrames(noNose, 5), 30)
	res, err := New(DefaultConfig()).Run(context.Background(), request(rec, heightCm(180)))
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Stages()[len(res.Stages())-1])
	assert.Equal(t, 1.0, res.Calibration.Value)
	assert.False(t, res.Calibration.Applied)
	assert.True(t, res.Calibration.Degenerate)
	assert.NotEqual(t, quality.ConfidenceHigh, res.Quality.Confidence)

	var calibrating Transition
	for _, tr := range res.Trace {
		if tr.Stage == StageCalibrating {
			calibrating = tr
		}
	}
	assert.Contains(t, calibrating.Note, "degenerate")
}

func TestRun_NoseOnAnklesFallsBackToUnitFactor(t *testing.T) {
	t.Parallel()

	var collapsed landmark.Set
	for _, o := range testutil.StandingFigure(1) {
		if o.ID == landmark.Nose {
			// Midpoint of the ankles at (+-0.1, 0, 0).
			o.Position = r3.Vec{}
		}
		collapsed = append(collapsed, o)
	}
	rec := testutil.Recording(testutil.RepeatFrames(collapsed, 10), 30)
	res, err := New(DefaultConfig()).Run(context.Background(), request(rec, heightCm(180)))
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Stages()[len(res.Stages())-1])
	assert.Equal(t, 1.0, res.Calibration.Value)
	assert.False(t, res.Calibration.Applied)
	assert.True(t, res.Calibration.Degenerate)
	assert.NotEqual(t, quality.ConfidenceHigh, res.Quality.Confidence)
}

func TestRun_ZeroDetections(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(make([]landmark.Set, 5), 30)
	_, err := New(DefaultConfig()).Run(context.Background(), request(rec, heightCm(180)))

	se := assertStageError(t, err, StageScaffoldBuilding, KindNoLandmarksDetected)
	assert.ErrorIs(t, err, scaffold.ErrNoLandmarksDetected)
	want := []Stage{StageValidating, StageExtracting, StageScaffoldBuilding, StageFailed}
	if diff := cmp.Diff(want, se.Stages()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InsufficientPoints(t *testing.T) {
	t.Parallel()

	sparse := landmark.Set{
		{ID: landmark.Nose, Position: r3.Vec{Y: 1.8}, Visibility: 1},
		{ID: landmark.LeftAnkle, Position: r3.Vec{X: 0.1}, Visibility: 1},
		{ID: landmark.RightAnkle, Position: r3.Vec{X: -0.1}, Visibility: 1},
	}
	rec := testutil.Recording(testutil.RepeatFrames(sparse, 4), 30)
	_, err := New(DefaultConfig()).Run(context.Background(), request(rec, nil))

	assertStageError(t, err, StageMeshSynthesis, KindInsufficientPoints)
	assert.ErrorIs(t, err, mesh.ErrInsufficientPoints)
}

type failingEstimator struct {
	inner  Estimator
	failAt int
	err    error
}

func (f failingEstimator) Estimate(ctx context.Context, fr frame.Frame) (landmark.Set, error) {
	if fr.Index == f.failAt {
		return nil, f.err
	}
	return f.inner.Estimate(ctx, fr)
}

func TestRun_EstimatorError(t *testing.T) {
	t.Parallel()

	boom := errors.New("model crashed")
	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 8), 30)
	req := Request{Frames: rec, Estimator: failingEstimator{inner: rec, failAt: 3, err: boom}}

	_, err := New(DefaultConfig()).Run(context.Background(), req)
	assertStageError(t, err, StageExtracting, KindPoseEstimationFailed)
	assert.ErrorIs(t, err, boom)
}

func TestRun_EmptyRecordingIsUnreadable(t *testing.T) {
	t.Parallel()

	rec := &pose.Recording{Source: "empty.json"}
	_, err := New(DefaultConfig()).Run(context.Background(), request(rec, nil))
	assertStageError(t, err, StageExtracting, KindVideoUnreadable)
	assert.ErrorIs(t, err, frame.ErrVideoUnreadable)
}

func TestRun_InvalidInput(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 2), 30)
	tests := []struct {
		name string
		req  Request
	}{
		{"no provider", Request{Estimator: rec}},
		{"no estimator", Request{Frames: rec}},
		{"zero reference", request(rec, heightCm(0))},
		{"negative reference", request(rec, heightCm(-170))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultConfig()).Run(context.Background(), tt.req)
			se := assertStageError(t, err, StageValidating, KindInvalidInput)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Len(t, se.Trace, 2)
		})
	}
}

func TestRun_VisibilityScreen(t *testing.T) {
	t.Parallel()

	frames := append(
		testutil.RepeatFrames(testutil.FullBody(0.95), 4),
		testutil.RepeatFrames(testutil.FullBody(0.2), 3)...,
	)
	frames = append(frames, nil)
	rec := testutil.Recording(frames, 30)

	cfg := DefaultConfig()
	cfg.Visibility = landmark.FrameCriteria{MinVisibility: 0.5, MinVisibleLandmarks: 5}
	res, err := New(cfg).Run(context.Background(), request(rec, heightCm(170)))
	require.NoError(t, err)

	assert.Equal(t, 8, res.Processing.FramesSampled)
	assert.Equal(t, 7, res.Processing.FramesWithDetections)
	assert.Equal(t, 3, res.Processing.FramesRejected)
	assert.Equal(t, 4, res.Processing.FramesAggregated)
}

func TestRun_FullBodyUsesHull(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(testutil.Jitter(testutil.FullBody(0.9), 12, 0.002, 7), 30)
	res, err := New(DefaultConfig()).Run(context.Background(), request(rec, heightCm(170)))
	require.NoError(t, err)

	assert.Equal(t, "convex_hull", res.Mesh.Construction)
	assert.True(t, res.Refinement.WatertightBefore)
	assert.True(t, res.Mesh.Watertight)
	assert.Greater(t, res.Measurements.Value(measure.MeshVolume), 0.0)

	// Refinement never stretches the surface past the observed heights.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, o := range testutil.FullBody(0.9) {
		lo = math.Min(lo, o.Position.Y)
		hi = math.Max(hi, o.Position.Y)
	}
	const slack = 0.01 // jitter amplitude is 0.002
	assert.GreaterOrEqual(t, res.Mesh.Bounds.Min.Y, lo-slack)
	assert.LessOrEqual(t, res.Mesh.Bounds.Max.Y, hi+slack)
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 2), 30)
	_, err := New(DefaultConfig()).Run(ctx, request(rec, nil))
	assertStageError(t, err, StageValidating, KindCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingEstimator struct {
	inner Estimator
	calls atomic.Int32
}

func (c *countingEstimator) Estimate(ctx context.Context, f frame.Frame) (landmark.Set, error) {
	c.calls.Add(1)
	return c.inner.Estimate(ctx, f)
}

func TestRun_MaxFramesBoundsEstimation(t *testing.T) {
	t.Parallel()

	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 50), 30)
	est := &countingEstimator{inner: rec}

	cfg := DefaultConfig()
	cfg.MaxFrames = 12
	cfg.Workers = 3
	res, err := New(cfg).Run(context.Background(), Request{Frames: rec, Estimator: est})
	require.NoError(t, err)

	assert.Equal(t, int32(12), est.calls.Load())
	assert.Equal(t, 12, res.Processing.FramesSampled)
	assert.Equal(t, 12, res.Video.Sampled)
	assert.Equal(t, 50, res.Video.FrameCount)
}

func TestRun_StageTimings(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewSteppingClock(t0, time.Second)
	rec := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 3), 30)

	res, err := New(DefaultConfig(), WithClock(clock)).Run(context.Background(), request(rec, heightCm(180)))
	require.NoError(t, err)

	require.Len(t, res.Trace, len(allStages))
	for _, tr := range res.Trace[:len(res.Trace)-1] {
		assert.Equal(t, time.Second, tr.Duration, tr.Stage.String())
	}
	assert.Equal(t, t0.Add(time.Second), res.Trace[0].StartedAt)
	assert.Equal(t, 9*time.Second, res.Duration)
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()

	cfg, err := ConfigFromTuning(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults file disagrees with DefaultConfig (-want +got):\n%s", diff)
	}

	bad := "median"
	_, err = ConfigFromTuning(&config.TuningConfig{AggregationStrategy: &bad})
	assert.Error(t, err)

	nilCfg, err := ConfigFromTuning(nil)
	require.NoError(t, err)
	assert.Equal(t, 30, nilCfg.MaxFrames)
}

func TestVisibilityScreenFollowsMinVisibleLandmarks(t *testing.T) {
	t.Parallel()

	assert.False(t, DefaultConfig().Visibility.Enabled())

	tc := config.MustLoadDefaultConfig()
	filter, landmarks := true, 5
	tc.FrameQualityFilter = &filter
	cfg, err := ConfigFromTuning(tc)
	require.NoError(t, err)
	assert.False(t, cfg.Visibility.Enabled(), "the frame quality filter does not screen landmarks")

	tc.MinVisibleLandmarks = &landmarks
	cfg, err = ConfigFromTuning(tc)
	require.NoError(t, err)
	assert.True(t, cfg.Visibility.Enabled())
	assert.Equal(t, 5, cfg.Visibility.MinVisibleLandmarks)
}

func TestStageText(t *testing.T) {
	t.Parallel()

	for _, s := range append(allStages, StageFailed) {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Stage
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	assert.Equal(t, "mesh_refinement", StageMeshRefinement.String())
	_, err := ParseStage("sleeping")
	assert.Error(t, err)
}
