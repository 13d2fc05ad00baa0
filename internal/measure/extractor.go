package measure

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/calibration"
	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/mesh"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
)

// limb is a left/right pair of segments whose lengths are averaged.
type limb struct {
	name        Name
	left, right [2]landmark.ID
}

var limbs = []limb{
	{ArmLength, [2]landmark.ID{landmark.LeftShoulder, landmark.LeftWrist}, [2]landmark.ID{landmark.RightShoulder, landmark.RightWrist}},
	{UpperArmLength, [2]landmark.ID{landmark.LeftShoulder, landmark.LeftElbow}, [2]landmark.ID{landmark.RightShoulder, landmark.RightElbow}},
	{ForearmLength, [2]landmark.ID{landmark.LeftElbow, landmark.LeftWrist}, [2]landmark.ID{landmark.RightElbow, landmark.RightWrist}},
	{LegLength, [2]landmark.ID{landmark.LeftHip, landmark.LeftAnkle}, [2]landmark.ID{landmark.RightHip, landmark.RightAnkle}},
	{Inseam, [2]landmark.ID{landmark.LeftKnee, landmark.LeftAnkle}, [2]landmark.ID{landmark.RightKnee, landmark.RightAnkle}},
}

// Unavailable reasons.
const (
	reasonMissingLandmarks = "required landmarks not observed"
	reasonZeroHeightProxy  = "nose and ankles coincide"
)

// Extractor computes the measurement taxonomy from a scaffold and a
// refined mesh.
type Extractor struct {
	SliceTolerance float64
}

// NewExtractor returns an extractor using the given circumference band.
// A non-positive tolerance selects DefaultSliceTolerance.
func NewExtractor(sliceTolerance float64) *Extractor {
	if sliceTolerance <= 0 {
		sliceTolerance = DefaultSliceTolerance
	}
	return &Extractor{SliceTolerance: sliceTolerance}
}

// Extract computes every measurement it can. Missing landmarks leave the
// affected measurement out of the set and recorded in
// Metadata.Unavailable; they never fail the extraction.
func (e *Extractor) Extract(sc *scaffold.Scaffold, m *mesh.Mesh, f calibration.Factor) (*Set, error) {
	if sc == nil {
		return nil, errors.New("extract: nil scaffold")
	}
	if m == nil {
		return nil, errors.New("extract: nil mesh")
	}

	values := make(map[Name]float64, len(Taxonomy))
	meta := Metadata{
		CalibrationFactor:       f.Value,
		CalibrationApplied:      f.Applied,
		ReferenceHeightProvided: f.ReferenceProvided(),
		HeightProxy:             f.HeightProxy,
		Unit:                    f.Unit(),
		Unavailable:             make(map[Name]string),
	}

	if proxy, ok := calibration.HeightProxy(sc); !ok {
		meta.Unavailable[Height] = reasonMissingLandmarks
	} else if proxy == 0 {
		meta.Unavailable[Height] = reasonZeroHeightProxy
	} else {
		values[Height] = f.Linear(proxy)
	}

	e.pair(sc, f, values, meta.Unavailable, ShoulderWidth, landmark.LeftShoulder, landmark.RightShoulder)
	e.pair(sc, f, values, meta.Unavailable, HipWidth, landmark.LeftHip, landmark.RightHip)
	for _, l := range limbs {
		e.limb(sc, f, values, meta.Unavailable, l)
	}

	shoulders, okS := sc.Midpoint(landmark.LeftShoulder, landmark.RightShoulder)
	hips, okH := sc.Midpoint(landmark.LeftHip, landmark.RightHip)
	if okS && okH {
		values[TorsoLength] = f.Linear(calibration.Distance(shoulders, hips))
	} else {
		meta.Unavailable[TorsoLength] = reasonMissingLandmarks
	}

	bands := []struct {
		name   Name
		height float64
		ok     bool
	}{
		{ChestCircumference, shoulders.Y, okS},
		{WaistCircumference, (shoulders.Y + hips.Y) / 2, okS && okH},
		{HipCircumference, hips.Y, okH},
	}
	for _, b := range bands {
		if !b.ok {
			meta.Unavailable[b.name] = reasonMissingLandmarks
			continue
		}
		s := CircumferenceAt(m.Vertices, b.height, e.SliceTolerance)
		s.Name = b.name
		meta.Slices = append(meta.Slices, s)
		if s.Degenerate() {
			meta.ZeroCircumferences = append(meta.ZeroCircumferences, b.name)
		}
		values[b.name] = f.Linear(s.Perimeter)
	}

	values[MeshVolume] = f.Volume(m.Volume())
	values[MeshSurfaceArea] = f.Area(m.SurfaceArea())

	if axis, err := sc.PrincipalAxis(); err == nil {
		tilt := Tilt(axis)
		meta.BodyAxisTiltDeg = &tilt
	}

	if len(meta.Unavailable) == 0 {
		meta.Unavailable = nil
	}
	return NewSet(values, meta), nil
}

func (e *Extractor) pair(sc *scaffold.Scaffold, f calibration.Factor, values map[Name]float64, missing map[Name]string, n Name, a, b landmark.ID) {
	pa, okA := sc.Position(a)
	pb, okB := sc.Position(b)
	if !okA || !okB {
		missing[n] = reasonMissingLandmarks
		return
	}
	values[n] = f.Linear(calibration.Distance(pa, pb))
}

// limb averages whichever sides were observed.
func (e *Extractor) limb(sc *scaffold.Scaffold, f calibration.Factor, values map[Name]float64, missing map[Name]string, l limb) {
	var total float64
	var sides int
	for _, seg := range [][2]landmark.ID{l.left, l.right} {
		a, okA := sc.Position(seg[0])
		b, okB := sc.Position(seg[1])
		if okA && okB {
			total += calibration.Distance(a, b)
			sides++
		}
	}
	if sides == 0 {
		missing[l.name] = reasonMissingLandmarks
		return
	}
	values[l.name] = f.Linear(total / float64(sides))
}

// Tilt returns the angle in degrees between axis and the vertical.
func Tilt(axis r3.Vec) float64 {
	n := r3.Norm(axis)
	if n == 0 {
		return 0
	}
	c := math.Min(1, math.Abs(axis.Y)/n)
	return math.Acos(c) * 180 / math.Pi
}
