package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSmoothingLambda is the umbrella-operator step size.
const DefaultSmoothingLambda = 0.5

// SmoothLaplacian moves every vertex towards the mean of its neighbours,
// iterations times, with step lambda. When the mesh encloses a volume the
// vertices are rescaled horizontally about the vertical axis through the
// centroid after each pass so the smoothing does not shrink the body.
// Heights are never scaled, so every vertex stays within the original
// Y range and height-banded slices keep lining up with the landmarks.
// Open meshes are smoothed without the volume constraint.
func SmoothLaplacian(m *Mesh, iterations int, lambda float64) {
	if m.Empty() || iterations <= 0 || lambda <= 0 {
		return
	}

	adj := m.neighbours()
	var target float64
	if m.IsWatertight() {
		target = m.Volume()
	}
	next := make([]r3.Vec, len(m.Vertices))

	for it := 0; it < iterations; it++ {
		for i, v := range m.Vertices {
			if len(adj[i]) == 0 {
				next[i] = v
				continue
			}
			var mean r3.Vec
			for _, j := range adj[i] {
				mean = r3.Add(mean, m.Vertices[j])
			}
			mean = r3.Scale(1/float64(len(adj[i])), mean)
			next[i] = r3.Add(v, r3.Scale(lambda, r3.Sub(mean, v)))
		}
		m.Vertices, next = next, m.Vertices

		if target > 0 {
			preserveVolume(m, target)
		}
	}
}

func preserveVolume(m *Mesh, target float64) {
	current := m.Volume()
	if current <= 0 {
		return
	}
	scale := math.Sqrt(target / current)

	var cx, cz float64
	for _, v := range m.Vertices {
		cx += v.X
		cz += v.Z
	}
	n := float64(len(m.Vertices))
	cx, cz = cx/n, cz/n
	for i, v := range m.Vertices {
		m.Vertices[i].X = cx + scale*(v.X-cx)
		m.Vertices[i].Z = cz + scale*(v.Z-cz)
	}
}
