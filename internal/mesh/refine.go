package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrRefinementFailed is returned when cleanup leaves no usable surface.
var ErrRefinementFailed = errors.New("mesh refinement failed")

// degenerateAreaEpsilon is the face area at or below which a triangle is
// treated as zero-area.
const degenerateAreaEpsilon = 1e-14

// Refiner cleans up and densifies a synthesized mesh. Each step is
// best-effort: a step with nothing to do leaves the mesh untouched.
type Refiner struct {
	MergeTolerance      float64 // Weld distance in mesh units; zero disables welding
	MaxHoleEdges        int     // Largest boundary loop that is filled
	SmoothingIterations int
	Lambda              float64
}

// RefineStats records what each refinement step changed.
type RefineStats struct {
	VerticesBefore   int  `json:"vertices_before"`
	FacesBefore      int  `json:"faces_before"`
	DegenerateFaces  int  `json:"degenerate_faces_removed"`
	VerticesMerged   int  `json:"vertices_merged"`
	HolesFilled      int  `json:"holes_filled"`
	SubdividedFaces  int  `json:"subdivided_faces"`
	VerticesAfter    int  `json:"vertices_after"`
	FacesAfter       int  `json:"faces_after"`
	WatertightBefore bool `json:"watertight_before"`
	WatertightAfter  bool `json:"watertight_after"`
}

// Refine runs, in order: degenerate-face removal, vertex welding, hole
// filling, one subdivision and a second smoothing pass. m is modified in
// place.
func (r *Refiner) Refine(m *Mesh) (RefineStats, error) {
	var st RefineStats
	if m.Empty() {
		return st, fmt.Errorf("%w: input mesh is empty", ErrRefinementFailed)
	}
	st.VerticesBefore = len(m.Vertices)
	st.FacesBefore = len(m.Faces)
	st.WatertightBefore = m.IsWatertight()

	st.DegenerateFaces = RemoveDegenerateFaces(m)
	if m.Empty() {
		return st, fmt.Errorf("%w: every face was degenerate", ErrRefinementFailed)
	}

	st.VerticesMerged = MergeVertices(m, r.MergeTolerance)
	if m.Empty() {
		return st, fmt.Errorf("%w: welding collapsed every face", ErrRefinementFailed)
	}

	st.HolesFilled = FillHoles(m, r.MaxHoleEdges)

	st.SubdividedFaces = len(m.Faces)
	Subdivide(m)

	SmoothLaplacian(m, r.SmoothingIterations, r.Lambda)

	for _, v := range m.Vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
			return st, fmt.Errorf("%w: non-finite vertex after smoothing", ErrRefinementFailed)
		}
	}

	st.VerticesAfter = len(m.Vertices)
	st.FacesAfter = len(m.Faces)
	st.WatertightAfter = m.IsWatertight()
	return st, nil
}

// RemoveDegenerateFaces drops faces with repeated indices or zero area,
// then drops vertices no longer referenced. It returns the faces removed.
func RemoveDegenerateFaces(m *Mesh) int {
	kept := m.Faces[:0]
	removed := 0
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] || m.faceArea(f) <= degenerateAreaEpsilon {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
	if removed > 0 || len(m.Faces) == 0 {
		m.compact()
	}
	return removed
}

// MergeVertices welds vertices that fall into the same tolerance-sized
// cell, keeping the first one seen. Faces that collapse are removed. It
// returns the number of vertices merged away.
func MergeVertices(m *Mesh, tolerance float64) int {
	if tolerance <= 0 || len(m.Vertices) == 0 {
		return 0
	}

	type cell struct{ x, y, z int64 }
	key := func(v r3.Vec) cell {
		return cell{
			int64(math.Round(v.X / tolerance)),
			int64(math.Round(v.Y / tolerance)),
			int64(math.Round(v.Z / tolerance)),
		}
	}

	first := make(map[cell]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	merged := 0
	for i, v := range m.Vertices {
		k := key(v)
		if j, ok := first[k]; ok {
			remap[i] = j
			merged++
			continue
		}
		first[k] = i
		remap[i] = i
	}
	if merged == 0 {
		return 0
	}

	kept := m.Faces[:0]
	for _, f := range m.Faces {
		g := Face{remap[f[0]], remap[f[1]], remap[f[2]]}
		if g[0] == g[1] || g[1] == g[2] || g[0] == g[2] {
			continue
		}
		kept = append(kept, g)
	}
	m.Faces = kept
	m.compact()
	return merged
}

// FillHoles closes boundary loops of at most maxEdges edges with a
// triangle fan. Larger loops are left open. It returns the loops filled.
func FillHoles(m *Mesh, maxEdges int) int {
	if m.Empty() || maxEdges < 3 {
		return 0
	}

	use := m.edgeUse()
	// A boundary face edge a->b is walked in reverse (b->a) around the hole.
	next := make(map[int]int)
	branching := make(map[int]bool)
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if use[undirected(a, b)] != 1 {
				continue
			}
			if _, dup := next[b]; dup {
				branching[b] = true
			}
			next[b] = a
		}
	}
	if len(next) == 0 {
		return 0
	}

	visited := make(map[int]bool, len(next))
	filled := 0
	for start := range next {
		if visited[start] || branching[start] {
			continue
		}
		loop := []int{start}
		visited[start] = true
		closed := false
		for cur := next[start]; len(loop) <= maxEdges; cur = next[cur] {
			if cur == start {
				closed = true
				break
			}
			if visited[cur] || branching[cur] {
				break
			}
			if _, ok := next[cur]; !ok {
				break
			}
			visited[cur] = true
			loop = append(loop, cur)
		}
		if !closed || len(loop) < 3 || len(loop) > maxEdges {
			continue
		}
		for i := 1; i+1 < len(loop); i++ {
			m.Faces = append(m.Faces, Face{loop[0], loop[i], loop[i+1]})
		}
		filled++
	}
	return filled
}

// Subdivide splits every face into four through its edge midpoints.
// Midpoints are shared between neighbouring faces, so a mesh with V
// vertices, E edges and F faces becomes V+E vertices and 4F faces.
func Subdivide(m *Mesh) {
	if m.Empty() {
		return
	}
	mids := make(map[edge]int, len(m.Faces)*3/2)
	midpoint := func(a, b int) int {
		e := undirected(a, b)
		if i, ok := mids[e]; ok {
			return i
		}
		i := len(m.Vertices)
		m.Vertices = append(m.Vertices, r3.Scale(0.5, r3.Add(m.Vertices[a], m.Vertices[b])))
		mids[e] = i
		return i
	}

	faces := make([]Face, 0, 4*len(m.Faces))
	for _, f := range m.Faces {
		ab := midpoint(f[0], f[1])
		bc := midpoint(f[1], f[2])
		ca := midpoint(f[2], f[0])
		faces = append(faces,
			Face{f[0], ab, ca},
			Face{f[1], bc, ab},
			Face{f[2], ca, bc},
			Face{ab, bc, ca},
		)
	}
	m.Faces = faces
}
