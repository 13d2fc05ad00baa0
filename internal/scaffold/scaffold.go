// Package scaffold fuses per-frame landmark observations into one stable
// set of 3D landmark positions for a subject.
//
// The scaffold is both a measurement source (landmark-to-landmark
// distances) and the seed geometry for mesh synthesis. It is built once per
// pipeline run and is read-only afterwards.
package scaffold

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
)

// ErrNoLandmarksDetected is returned when no frame contributed a usable observation.
var ErrNoLandmarksDetected = errors.New("no landmarks detected in any frame")

// Scaffold holds one aggregated position per landmark. Landmarks never
// observed are left unset.
type Scaffold struct {
	positions [landmark.Count]r3.Vec
	present   [landmark.Count]bool
	samples   [landmark.Count]int
	frames    int
}

// FromPositions builds a scaffold directly from known positions.
func FromPositions(positions map[landmark.ID]r3.Vec) *Scaffold {
	s := &Scaffold{frames: 1}
	for id, p := range positions {
		if !id.Valid() {
			continue
		}
		s.positions[id] = p
		s.present[id] = true
		s.samples[id] = 1
	}
	return s
}

// Position returns the aggregated position of id.
func (s *Scaffold) Position(id landmark.ID) (r3.Vec, bool) {
	if s == nil || !id.Valid() || !s.present[id] {
		return r3.Vec{}, false
	}
	return s.positions[id], true
}

// Has reports whether every id is populated.
func (s *Scaffold) Has(ids ...landmark.ID) bool {
	for _, id := range ids {
		if _, ok := s.Position(id); !ok {
			return false
		}
	}
	return true
}

// Midpoint returns the midpoint of two populated landmarks.
func (s *Scaffold) Midpoint(a, b landmark.ID) (r3.Vec, bool) {
	pa, okA := s.Position(a)
	pb, okB := s.Position(b)
	if !okA || !okB {
		return r3.Vec{}, false
	}
	return r3.Scale(0.5, r3.Add(pa, pb)), true
}

// Points returns the populated positions among ids, in the order given.
func (s *Scaffold) Points(ids []landmark.ID) []r3.Vec {
	out := make([]r3.Vec, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Position(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Present returns the number of populated landmarks.
func (s *Scaffold) Present() int {
	n := 0
	for _, ok := range s.present {
		if ok {
			n++
		}
	}
	return n
}

// Samples returns how many observations were averaged into id.
func (s *Scaffold) Samples(id landmark.ID) int {
	if !id.Valid() {
		return 0
	}
	return s.samples[id]
}

// Frames returns the number of frames that were aggregated.
func (s *Scaffold) Frames() int {
	return s.frames
}

// PrincipalAxis returns the unit direction of greatest spread of the
// populated landmarks, oriented so its Y component is non-negative. For an
// upright subject this is the height axis.
func (s *Scaffold) PrincipalAxis() (r3.Vec, error) {
	var pts []r3.Vec
	for i := 0; i < landmark.Count; i++ {
		if s.present[i] {
			pts = append(pts, s.positions[i])
		}
	}
	if len(pts) < 2 {
		return r3.Vec{}, fmt.Errorf("principal axis needs at least 2 landmarks, have %d", len(pts))
	}

	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(len(pts)), c)

	cov := mat.NewSymDense(3, nil)
	for _, p := range pts {
		d := r3.Sub(p, c)
		v := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+v[i]*v[j])
			}
		}
	}
	cov.ScaleSym(1/float64(len(pts)), cov)

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return r3.Vec{}, errors.New("principal axis: eigen decomposition failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues are returned in ascending order; the last column is the principal axis.
	axis := r3.Vec{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)}
	if axis.Y < 0 {
		axis = r3.Scale(-1, axis)
	}
	return r3.Unit(axis), nil
}
