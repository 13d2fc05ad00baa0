package measure

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSliceTolerance is the half-height of the vertex band used for
// circumferences, in scaffold units.
const DefaultSliceTolerance = 0.02

// Slice is one horizontal cross-section of the mesh.
type Slice struct {
	Name      Name     `json:"name"`
	Height    float64  `json:"height"`
	Tolerance float64  `json:"tolerance"`
	Vertices  int      `json:"vertices"`
	Hull      []r2.Vec `json:"hull,omitempty"`
	Perimeter float64  `json:"perimeter"` // uncalibrated
}

// Degenerate reports whether the slice could not produce a perimeter.
func (s Slice) Degenerate() bool {
	return len(s.Hull) < 3
}

// CircumferenceAt selects the vertices strictly within tolerance of
// height on the Y axis, projects them onto the X-Z plane and returns the
// slice with the perimeter of their convex hull. Fewer than three
// vertices, or a collinear band, yields a zero perimeter.
func CircumferenceAt(vertices []r3.Vec, height, tolerance float64) Slice {
	s := Slice{Height: height, Tolerance: tolerance}
	var band []r2.Vec
	for _, v := range vertices {
		if math.Abs(v.Y-height) < tolerance {
			band = append(band, r2.Vec{X: v.X, Y: v.Z})
		}
	}
	s.Vertices = len(band)
	if len(band) < 3 {
		return s
	}

	hull := convexHull2D(band)
	if len(hull) < 3 {
		return s
	}
	s.Hull = hull
	s.Perimeter = perimeter(hull)
	return s
}

// convexHull2D is Andrew's monotone chain. It returns the hull in
// counter-clockwise order without collinear points.
func convexHull2D(pts []r2.Vec) []r2.Vec {
	p := append([]r2.Vec(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})

	cross := func(o, a, b r2.Vec) float64 {
		return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
	}

	hull := make([]r2.Vec, 0, 2*len(p))
	for _, q := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		q := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return hull[:len(hull)-1]
}

func perimeter(ring []r2.Vec) float64 {
	var total float64
	for i := range ring {
		total += r2.Norm(r2.Sub(ring[(i+1)%len(ring)], ring[i]))
	}
	return total
}
