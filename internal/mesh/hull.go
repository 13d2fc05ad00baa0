package mesh

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateHull is returned when the input cannot span a volume
// (fewer than four distinct points, or all points collinear or coplanar).
var ErrDegenerateHull = errors.New("convex hull: points are degenerate")

// hullRelativeEpsilon scales the plane-distance tolerance by the size of
// the point cloud.
const hullRelativeEpsilon = 1e-9

type hullFace struct {
	v      [3]int
	normal r3.Vec
	offset float64
	dead   bool
}

func newHullFace(pts []r3.Vec, a, b, c int) hullFace {
	n := r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(pts[c], pts[a]))
	if l := r3.Norm(n); l > 0 {
		n = r3.Scale(1/l, n)
	}
	return hullFace{v: [3]int{a, b, c}, normal: n, offset: r3.Dot(n, pts[a])}
}

func (f hullFace) distance(p r3.Vec) float64 {
	return r3.Dot(f.normal, p) - f.offset
}

// ConvexHull computes the 3D convex hull of pts with the incremental
// algorithm. The result contains only hull vertices, with outward-facing,
// counter-clockwise faces.
func ConvexHull(pts []r3.Vec) (*Mesh, error) {
	if len(pts) < 4 {
		return nil, ErrDegenerateHull
	}

	eps := hullRelativeEpsilon * extent(pts)
	if eps == 0 {
		return nil, ErrDegenerateHull
	}

	i0, i1, i2, i3, ok := initialSimplex(pts, eps)
	if !ok {
		return nil, ErrDegenerateHull
	}

	// Orient the seed tetrahedron so every face points away from its centroid.
	centroid := r3.Scale(0.25, r3.Add(r3.Add(pts[i0], pts[i1]), r3.Add(pts[i2], pts[i3])))
	faces := make([]hullFace, 0, 2*len(pts))
	for _, tri := range [4][3]int{{i0, i1, i2}, {i0, i2, i3}, {i0, i3, i1}, {i1, i3, i2}} {
		f := newHullFace(pts, tri[0], tri[1], tri[2])
		if f.distance(centroid) > 0 {
			f = newHullFace(pts, tri[0], tri[2], tri[1])
		}
		faces = append(faces, f)
	}

	for p := range pts {
		if p == i0 || p == i1 || p == i2 || p == i3 {
			continue
		}

		visible := make(map[[2]int]bool)
		anyVisible := false
		for fi := range faces {
			f := &faces[fi]
			if f.dead || f.distance(pts[p]) <= eps {
				continue
			}
			f.dead = true
			anyVisible = true
			for k := 0; k < 3; k++ {
				visible[[2]int{f.v[k], f.v[(k+1)%3]}] = true
			}
		}
		if !anyVisible {
			continue
		}

		// Horizon edges belong to exactly one visible face; joining them to
		// p keeps the original winding.
		for e := range visible {
			if visible[[2]int{e[1], e[0]}] {
				continue
			}
			faces = append(faces, newHullFace(pts, e[0], e[1], p))
		}
	}

	m := &Mesh{Vertices: append([]r3.Vec(nil), pts...), Construction: ConstructionConvexHull}
	for _, f := range faces {
		if !f.dead {
			m.Faces = append(m.Faces, Face(f.v))
		}
	}
	m.compact()
	return m, nil
}

// initialSimplex picks four affinely independent points spanning a large
// tetrahedron.
func initialSimplex(pts []r3.Vec, eps float64) (a, b, c, d int, ok bool) {
	a = 0
	for i := range pts {
		if pts[i].X < pts[a].X {
			a = i
		}
	}

	best := 0.0
	b = -1
	for i := range pts {
		if dist := r3.Norm(r3.Sub(pts[i], pts[a])); dist > best {
			best, b = dist, i
		}
	}
	if b < 0 || best <= eps {
		return 0, 0, 0, 0, false
	}

	dir := r3.Unit(r3.Sub(pts[b], pts[a]))
	best = 0
	c = -1
	for i := range pts {
		if dist := r3.Norm(r3.Cross(dir, r3.Sub(pts[i], pts[a]))); dist > best {
			best, c = dist, i
		}
	}
	if c < 0 || best <= eps {
		return 0, 0, 0, 0, false
	}

	n := r3.Unit(r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(pts[c], pts[a])))
	best = 0
	d = -1
	for i := range pts {
		if dist := math.Abs(r3.Dot(n, r3.Sub(pts[i], pts[a]))); dist > best {
			best, d = dist, i
		}
	}
	if d < 0 || best <= eps {
		return 0, 0, 0, 0, false
	}
	return a, b, c, d, true
}

// extent returns the diagonal length of the bounding box of pts.
func extent(pts []r3.Vec) float64 {
	m := Mesh{Vertices: pts}
	b := m.Bounds()
	return r3.Norm(r3.Sub(b.Max, b.Min))
}
