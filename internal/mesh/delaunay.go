package mesh

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerateTriangulation is returned when the projected points are
// collinear or fewer than three distinct points remain.
var ErrDegenerateTriangulation = errors.New("delaunay: points are degenerate")

type triangle struct {
	v      [3]int
	centre r2.Vec
	radius float64 // squared circumradius
}

func newTriangle(pts []r2.Vec, a, b, c int) triangle {
	// Keep every triangle counter-clockwise.
	if orient(pts[a], pts[b], pts[c]) < 0 {
		b, c = c, b
	}
	t := triangle{v: [3]int{a, b, c}}
	t.centre, t.radius = circumcircle(pts[a], pts[b], pts[c])
	return t
}

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func circumcircle(a, b, c r2.Vec) (r2.Vec, float64) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if d == 0 {
		return r2.Vec{}, math.Inf(1)
	}
	a2 := r2.Norm2(a)
	b2 := r2.Norm2(b)
	c2 := r2.Norm2(c)
	centre := r2.Vec{
		X: (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d,
		Y: (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d,
	}
	return centre, r2.Norm2(r2.Sub(a, centre))
}

// Delaunay triangulates pts with the Bowyer-Watson algorithm and returns
// counter-clockwise index triples into pts. Points that coincide with an
// earlier point are left out of the triangulation.
func Delaunay(pts []r2.Vec) ([][3]int, error) {
	if len(pts) < 3 {
		return nil, ErrDegenerateTriangulation
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		return nil, ErrDegenerateTriangulation
	}
	eps := 1e-12 * span * span
	mid := r2.Vec{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}

	// Work on a copy with the super-triangle appended.
	n := len(pts)
	work := make([]r2.Vec, n, n+3)
	copy(work, pts)
	work = append(work,
		r2.Vec{X: mid.X - 20*span, Y: mid.Y - span},
		r2.Vec{X: mid.X, Y: mid.Y + 20*span},
		r2.Vec{X: mid.X + 20*span, Y: mid.Y - span},
	)
	tris := []triangle{newTriangle(work, n, n+1, n+2)}

	inserted := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if duplicateOf(pts, inserted, i, eps) {
			continue
		}
		inserted = append(inserted, i)

		p := work[i]
		var bad []int
		for ti, t := range tris {
			if r2.Norm2(r2.Sub(p, t.centre)) < t.radius-eps {
				bad = append(bad, ti)
			}
		}

		// The cavity boundary is every edge used by exactly one bad triangle.
		edges := make(map[[2]int]int)
		var order [][2]int
		for _, ti := range bad {
			v := tris[ti].v
			for k := 0; k < 3; k++ {
				e := [2]int{v[k], v[(k+1)%3]}
				key := e
				if key[0] > key[1] {
					key[0], key[1] = key[1], key[0]
				}
				if edges[key] == 0 {
					order = append(order, e)
				}
				edges[key]++
			}
		}

		kept := tris[:0]
		isBad := make(map[int]bool, len(bad))
		for _, ti := range bad {
			isBad[ti] = true
		}
		for ti, t := range tris {
			if !isBad[ti] {
				kept = append(kept, t)
			}
		}
		tris = kept

		for _, e := range order {
			key := e
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if edges[key] != 1 {
				continue
			}
			if math.Abs(orient(work[e[0]], work[e[1]], p)) <= eps {
				continue
			}
			tris = append(tris, newTriangle(work, e[0], e[1], i))
		}
	}

	var out [][3]int
	for _, t := range tris {
		if t.v[0] >= n || t.v[1] >= n || t.v[2] >= n {
			continue
		}
		out = append(out, t.v)
	}
	if len(out) == 0 {
		return nil, ErrDegenerateTriangulation
	}
	return out, nil
}

func duplicateOf(pts []r2.Vec, inserted []int, i int, eps float64) bool {
	for _, j := range inserted {
		if r2.Norm2(r2.Sub(pts[i], pts[j])) <= eps {
			return true
		}
	}
	return false
}
