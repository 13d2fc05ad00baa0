package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a triangle given as three vertex indices, counter-clockwise when
// seen from outside the surface.
type Face [3]int

// Mesh is a triangle surface. A Mesh is owned by one pipeline run; the
// refiner mutates it in place.
type Mesh struct {
	Vertices     []r3.Vec
	Faces        []Face
	Construction Construction
}

// Stats summarises the derived properties of a mesh.
type Stats struct {
	Vertices     int     `json:"vertices"`
	Faces        int     `json:"faces"`
	Volume       float64 `json:"volume"`
	SurfaceArea  float64 `json:"surface_area"`
	Watertight   bool    `json:"watertight"`
	Bounds       r3.Box  `json:"bounds"`
	Construction string  `json:"construction"`
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:     make([]r3.Vec, len(m.Vertices)),
		Faces:        make([]Face, len(m.Faces)),
		Construction: m.Construction,
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	return out
}

// Empty reports whether the mesh has no faces.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Faces) == 0 || len(m.Vertices) == 0
}

// Stats computes the derived properties of m.
func (m *Mesh) Stats() Stats {
	return Stats{
		Vertices:     len(m.Vertices),
		Faces:        len(m.Faces),
		Volume:       m.Volume(),
		SurfaceArea:  m.SurfaceArea(),
		Watertight:   m.IsWatertight(),
		Bounds:       m.Bounds(),
		Construction: m.Construction.String(),
	}
}

// Volume returns the enclosed volume using the divergence theorem. The
// value is only meaningful for watertight meshes; open meshes yield the
// volume of the cone from the origin.
func (m *Mesh) Volume() float64 {
	var v float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		v += r3.Dot(a, r3.Cross(b, c))
	}
	return math.Abs(v) / 6
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for _, f := range m.Faces {
		area += m.faceArea(f)
	}
	return area
}

func (m *Mesh) faceArea(f Face) float64 {
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Min.Z = math.Min(b.Min.Z, v.Z)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
		b.Max.Z = math.Max(b.Max.Z, v.Z)
	}
	return b
}

// IsWatertight reports whether every edge is shared by exactly two faces.
func (m *Mesh) IsWatertight() bool {
	if m.Empty() {
		return false
	}
	for _, n := range m.edgeUse() {
		if n != 2 {
			return false
		}
	}
	return true
}

type edge struct{ a, b int }

func undirected(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// edgeUse counts the faces incident to each undirected edge.
func (m *Mesh) edgeUse() map[edge]int {
	use := make(map[edge]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			use[undirected(f[i], f[(i+1)%3])]++
		}
	}
	return use
}

// neighbours returns the adjacency list of every vertex.
func (m *Mesh) neighbours() [][]int {
	adj := make([][]int, len(m.Vertices))
	seen := make(map[edge]bool, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			e := undirected(f[i], f[(i+1)%3])
			if seen[e] {
				continue
			}
			seen[e] = true
			adj[e.a] = append(adj[e.a], e.b)
			adj[e.b] = append(adj[e.b], e.a)
		}
	}
	return adj
}

// compact drops vertices no face references and renumbers faces.
// It returns the number of vertices removed.
func (m *Mesh) compact() int {
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	kept := make([]r3.Vec, 0, len(m.Vertices))
	for fi, f := range m.Faces {
		for k, vi := range f {
			if remap[vi] < 0 {
				remap[vi] = len(kept)
				kept = append(kept, m.Vertices[vi])
			}
			m.Faces[fi][k] = remap[vi]
		}
	}
	removed := len(m.Vertices) - len(kept)
	m.Vertices = kept
	return removed
}
