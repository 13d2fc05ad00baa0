// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic subjects used across the
// measurement packages so every test agrees on the same geometry.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/pose"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// StandingFigure returns a flat upright subject in metres: nose at 1.8,
// ankles on the floor 0.2 apart, shoulders 0.5 apart at 1.5 and hips 0.3
// apart at 0.9. Every point has Z = 0, so the mesh falls back to a
// triangulation.
func StandingFigure(visibility float64) landmark.Set {
	return set(visibility, map[landmark.ID]r3.Vec{
		landmark.Nose:          {X: 0, Y: 1.8},
		landmark.LeftShoulder:  {X: 0.25, Y: 1.5},
		landmark.RightShoulder: {X: -0.25, Y: 1.5},
		landmark.LeftHip:       {X: 0.15, Y: 0.9},
		landmark.RightHip:      {X: -0.15, Y: 0.9},
		landmark.LeftAnkle:     {X: 0.1, Y: 0},
		landmark.RightAnkle:    {X: -0.1, Y: 0},
	})
}

// FullBody returns a subject with every surface joint and some depth,
// so the convex hull succeeds.
func FullBody(visibility float64) landmark.Set {
	return set(visibility, map[landmark.ID]r3.Vec{
		landmark.Nose:          {X: 0, Y: 1.62, Z: 0.10},
		landmark.LeftEye:       {X: 0.03, Y: 1.66, Z: 0.08},
		landmark.RightEye:      {X: -0.03, Y: 1.66, Z: 0.08},
		landmark.LeftEar:       {X: 0.07, Y: 1.64, Z: -0.01},
		landmark.RightEar:      {X: -0.07, Y: 1.64, Z: -0.01},
		landmark.LeftShoulder:  {X: 0.2, Y: 1.4, Z: -0.03},
		landmark.RightShoulder: {X: -0.2, Y: 1.4, Z: -0.03},
		landmark.LeftElbow:     {X: 0.28, Y: 1.12, Z: -0.05},
		landmark.RightElbow:    {X: -0.28, Y: 1.12, Z: -0.05},
		landmark.LeftWrist:     {X: 0.32, Y: 0.86, Z: 0.02},
		landmark.RightWrist:    {X: -0.32, Y: 0.86, Z: 0.02},
		landmark.LeftHip:       {X: 0.12, Y: 0.9, Z: -0.02},
		landmark.RightHip:      {X: -0.12, Y: 0.9, Z: -0.02},
		landmark.LeftKnee:      {X: 0.11, Y: 0.48, Z: 0.03},
		landmark.RightKnee:     {X: -0.11, Y: 0.48, Z: 0.03},
		landmark.LeftAnkle:     {X: 0.1, Y: 0.06, Z: -0.04},
		landmark.RightAnkle:    {X: -0.1, Y: 0.06, Z: -0.04},
	})
}

func set(visibility float64, pts map[landmark.ID]r3.Vec) landmark.Set {
	out := make(landmark.Set, 0, len(pts))
	for id := landmark.ID(0); int(id) < landmark.Count; id++ {
		if p, ok := pts[id]; ok {
			out = append(out, landmark.Observation{ID: id, Position: p, Visibility: visibility})
		}
	}
	return out
}

// RepeatFrames returns n independent copies of s.
func RepeatFrames(s landmark.Set, n int) []landmark.Set {
	frames := make([]landmark.Set, n)
	for i := range frames {
		frames[i] = append(landmark.Set(nil), s...)
	}
	return frames
}

// Jitter returns n copies of s with each coordinate perturbed uniformly
// within ±amplitude. The same seed always gives the same frames.
func Jitter(s landmark.Set, n int, amplitude float64, seed int64) []landmark.Set {
	rng := rand.New(rand.NewSource(seed))
	frames := RepeatFrames(s, n)
	for _, f := range frames {
		for i := range f {
			f[i].Position = r3.Add(f[i].Position, r3.Vec{
				X: (rng.Float64()*2 - 1) * amplitude,
				Y: (rng.Float64()*2 - 1) * amplitude,
				Z: (rng.Float64()*2 - 1) * amplitude,
			})
		}
	}
	return frames
}

// Ring returns n points evenly spaced on a horizontal circle at height y.
func Ring(n int, radius, y float64) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r3.Vec{X: radius * math.Cos(a), Y: y, Z: radius * math.Sin(a)}
	}
	return pts
}

// RegularPerimeter is the perimeter of a regular n-gon inscribed in a
// circle of the given radius.
func RegularPerimeter(n int, radius float64) float64 {
	return float64(n) * 2 * radius * math.Sin(math.Pi/float64(n))
}

// Recording packs frames into a replayable recording, one frame per
// index. A nil entry records a frame with no detection.
func Recording(frames []landmark.Set, fps float64) *pose.Recording {
	r := &pose.Recording{Source: "synthetic", FPS: fps}
	for i, f := range frames {
		r.Append(i, f)
	}
	return r
}
