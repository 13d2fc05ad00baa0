package scaffold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
)

func obs(id landmark.ID, x, y, z float64) landmark.Observation {
	return landmark.Observation{ID: id, Position: r3.Vec{X: x, Y: y, Z: z}, Visibility: 0.9}
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewAggregator(nil).Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoLandmarksDetected)

	_, err = NewAggregator(nil).Aggregate([]landmark.Set{{}, {}})
	assert.ErrorIs(t, err, ErrNoLandmarksDetected)

	// Frames with only unusable observations count as no detection.
	_, err = NewAggregator(nil).Aggregate([]landmark.Set{{obs(landmark.Nose, math.NaN(), 0, 0)}})
	assert.ErrorIs(t, err, ErrNoLandmarksDetected)
}

func TestAggregate_ArithmeticMean(t *testing.T) {
	t.Parallel()

	positions := []r3.Vec{
		{X: 0.10, Y: 1.51, Z: -0.02},
		{X: 0.12, Y: 1.49, Z: 0.01},
		{X: 0.09, Y: 1.50, Z: 0.03},
		{X: 0.13, Y: 1.52, Z: -0.01},
		{X: 0.11, Y: 1.48, Z: 0.00},
	}
	frames := make([]landmark.Set, len(positions))
	var want r3.Vec
	for i, p := range positions {
		frames[i] = landmark.Set{{ID: landmark.LeftShoulder, Position: p, Visibility: 0.8}}
		want = r3.Add(want, p)
	}
	want = r3.Scale(1/float64(len(positions)), want)

	s, err := NewAggregator(MeanStrategy{}).Aggregate(frames)
	require.NoError(t, err)

	got, ok := s.Position(landmark.LeftShoulder)
	require.True(t, ok)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
	assert.InDelta(t, want.Z, got.Z, 1e-12)
	assert.Equal(t, 5, s.Samples(landmark.LeftShoulder))
	assert.Equal(t, 5, s.Frames())
}

func TestAggregate_IdenticalFramesAreExact(t *testing.T) {
	t.Parallel()

	frames := make([]landmark.Set, 10)
	for i := range frames {
		frames[i] = landmark.Set{obs(landmark.Nose, 0, 1.8, 0)}
	}
	s, err := NewAggregator(nil).Aggregate(frames)
	require.NoError(t, err)
	p, _ := s.Position(landmark.Nose)
	assert.Equal(t, 1.8, p.Y)
}

func TestAggregate_PartialCoverage(t *testing.T) {
	t.Parallel()

	frames := []landmark.Set{
		{obs(landmark.Nose, 0, 1.8, 0), obs(landmark.LeftAnkle, 0.1, 0, 0)},
		{obs(landmark.Nose, 0, 1.6, 0)},
	}
	s, err := NewAggregator(nil).Aggregate(frames)
	require.NoError(t, err)

	nose, ok := s.Position(landmark.Nose)
	require.True(t, ok)
	assert.InDelta(t, 1.7, nose.Y, 1e-12)

	ankle, ok := s.Position(landmark.LeftAnkle)
	require.True(t, ok)
	assert.Equal(t, 0.1, ankle.X)
	assert.Equal(t, 1, s.Samples(landmark.LeftAnkle))

	_, ok = s.Position(landmark.RightAnkle)
	assert.False(t, ok, "landmark absent from every frame must stay unset")
	assert.Equal(t, 2, s.Present())
	assert.False(t, s.Has(landmark.Nose, landmark.RightAnkle))
}

func TestTrimmedMeanRejectsOutlier(t *testing.T) {
	t.Parallel()

	frames := make([]landmark.Set, 0, 10)
	for i := 0; i < 9; i++ {
		frames = append(frames, landmark.Set{obs(landmark.LeftHip, 0.15, 0.9, 0)})
	}
	frames = append(frames, landmark.Set{obs(landmark.LeftHip, 0.15, 3.0, 0)})

	mean, err := NewAggregator(MeanStrategy{}).Aggregate(frames)
	require.NoError(t, err)
	trimmed, err := NewAggregator(TrimmedMeanStrategy{Fraction: 0.1}).Aggregate(frames)
	require.NoError(t, err)

	pm, _ := mean.Position(landmark.LeftHip)
	pt, _ := trimmed.Position(landmark.LeftHip)
	assert.InDelta(t, 1.11, pm.Y, 1e-12)
	assert.Equal(t, 0.9, pt.Y)
}

func TestNewStrategy(t *testing.T) {
	t.Parallel()

	s, err := NewStrategy("", 0)
	require.NoError(t, err)
	assert.Equal(t, StrategyMean, s.Name())

	s, err = NewStrategy(StrategyTrimmedMean, 0.2)
	require.NoError(t, err)
	assert.Equal(t, TrimmedMeanStrategy{Fraction: 0.2}, s)

	_, err = NewStrategy(StrategyTrimmedMean, 0.5)
	assert.Error(t, err)
	_, err = NewStrategy("median", 0)
	assert.Error(t, err)
}

func TestMidpointAndPoints(t *testing.T) {
	t.Parallel()

	s := FromPositions(map[landmark.ID]r3.Vec{
		landmark.LeftHip:  {X: 0.15, Y: 0.9},
		landmark.RightHip: {X: -0.15, Y: 0.9},
	})
	mid, ok := s.Midpoint(landmark.LeftHip, landmark.RightHip)
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 0, Y: 0.9}, mid)

	_, ok = s.Midpoint(landmark.LeftHip, landmark.LeftKnee)
	assert.False(t, ok)

	pts := s.Points([]landmark.ID{landmark.RightHip, landmark.Nose, landmark.LeftHip})
	assert.Equal(t, []r3.Vec{{X: -0.15, Y: 0.9}, {X: 0.15, Y: 0.9}}, pts)
}

func TestPrincipalAxis(t *testing.T) {
	t.Parallel()

	upright := FromPositions(map[landmark.ID]r3.Vec{
		landmark.Nose:          {X: 0, Y: 1.8},
		landmark.LeftShoulder:  {X: 0.2, Y: 1.5},
		landmark.RightShoulder: {X: -0.2, Y: 1.5},
		landmark.LeftHip:       {X: 0.15, Y: 0.9},
		landmark.RightHip:      {X: -0.15, Y: 0.9},
		landmark.LeftAnkle:     {X: 0.1, Y: 0},
		landmark.RightAnkle:    {X: -0.1, Y: 0},
	})
	axis, err := upright.PrincipalAxis()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, axis.Y, 1e-9)
	assert.InDelta(t, 1.0, r3.Norm(axis), 1e-12)

	_, err = FromPositions(map[landmark.ID]r3.Vec{landmark.Nose: {}}).PrincipalAxis()
	assert.Error(t, err)
}
