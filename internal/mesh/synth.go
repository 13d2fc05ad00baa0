package mesh

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
)

// ErrInsufficientPoints is returned when the scaffold has fewer than four
// distinct points to enclose.
var ErrInsufficientPoints = errors.New("insufficient points for mesh")

// minMeshPoints is the smallest cloud that can enclose a volume.
const minMeshPoints = 4

// Construction identifies how the initial surface was built.
type Construction int

const (
	// ConstructionNone marks a mesh not produced by the synthesizer.
	ConstructionNone Construction = iota
	// ConstructionConvexHull is the primary strategy: the 3D hull of the cloud.
	ConstructionConvexHull
	// ConstructionDelaunay is the fallback for flat clouds: a 2D Delaunay
	// triangulation of the X-Y projection lifted back onto the 3D points.
	ConstructionDelaunay
)

// String returns the construction name.
func (c Construction) String() string {
	switch c {
	case ConstructionConvexHull:
		return "convex_hull"
	case ConstructionDelaunay:
		return "delaunay"
	default:
		return "none"
	}
}

// SurfaceLandmarks is the point cloud enclosed by the synthesized surface:
// head points plus the main torso and limb joints.
var SurfaceLandmarks = []landmark.ID{
	landmark.Nose,
	landmark.LeftShoulder, landmark.RightShoulder,
	landmark.LeftElbow, landmark.RightElbow,
	landmark.LeftWrist, landmark.RightWrist,
	landmark.LeftHip, landmark.RightHip,
	landmark.LeftKnee, landmark.RightKnee,
	landmark.LeftAnkle, landmark.RightAnkle,
	landmark.LeftEar, landmark.RightEar,
	landmark.LeftEye, landmark.RightEye,
}

// Synthesizer builds the initial surface from a scaffold.
type Synthesizer struct {
	SmoothingIterations int
	Lambda              float64
}

// NewSynthesizer returns a synthesizer with the given smoothing pass.
func NewSynthesizer(iterations int, lambda float64) *Synthesizer {
	return &Synthesizer{SmoothingIterations: iterations, Lambda: lambda}
}

// Synthesize selects SurfaceLandmarks from the scaffold, encloses them and
// applies one smoothing pass. The convex hull is tried first; when it
// rejects the cloud as degenerate the Delaunay fallback is used.
func (s *Synthesizer) Synthesize(sc *scaffold.Scaffold) (*Mesh, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: scaffold is nil", ErrInsufficientPoints)
	}
	pts := distinct(sc.Points(SurfaceLandmarks))
	if len(pts) < minMeshPoints {
		return nil, fmt.Errorf("%w: %d distinct points, need %d", ErrInsufficientPoints, len(pts), minMeshPoints)
	}

	m, err := ConvexHull(pts)
	if err != nil {
		m, err = liftedDelaunay(pts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientPoints, err)
		}
	}

	SmoothLaplacian(m, s.SmoothingIterations, s.Lambda)
	return m, nil
}

// liftedDelaunay triangulates the points projected onto the X-Y plane
// (dropping depth) and reuses the triangle indices on the 3D points.
func liftedDelaunay(pts []r3.Vec) (*Mesh, error) {
	flat := make([]r2.Vec, len(pts))
	for i, p := range pts {
		flat[i] = r2.Vec{X: p.X, Y: p.Y}
	}
	tris, err := Delaunay(flat)
	if err != nil {
		return nil, err
	}
	m := &Mesh{
		Vertices:     append([]r3.Vec(nil), pts...),
		Faces:        make([]Face, len(tris)),
		Construction: ConstructionDelaunay,
	}
	for i, t := range tris {
		m.Faces[i] = Face(t)
	}
	m.compact()
	return m, nil
}

// distinctEpsilon is the distance below which two scaffold points are
// treated as the same point.
const distinctEpsilon = 1e-9

func distinct(pts []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, len(pts))
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if r3.Norm(r3.Sub(p, q)) <= distinctEpsilon {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}
