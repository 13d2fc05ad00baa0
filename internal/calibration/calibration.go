// Package calibration maps scaffold units to real-world centimetres using
// the subject's known height.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
)

// ErrDegenerateHeightProxy is returned when the nose-to-ankle distance is
// too small to divide by. It is a soft failure: the returned Factor is
// still usable and falls back to 1.0.
var ErrDegenerateHeightProxy = errors.New("degenerate height proxy")

// DefaultEpsilon is the height proxy at or below which calibration is
// refused.
const DefaultEpsilon = 1e-6

// Unit names the unit calibrated values are reported in.
type Unit string

const (
	UnitCentimetre Unit = "cm"
	UnitScaffold   Unit = "scaffold"
)

// Factor is the scale from scaffold units to centimetres.
type Factor struct {
	Value             float64  `json:"value"`
	Applied           bool     `json:"applied"`
	ReferenceHeightCm *float64 `json:"reference_height_cm,omitempty"`
	HeightProxy       float64  `json:"height_proxy"`
	Degenerate        bool     `json:"degenerate"`
}

// Identity returns the uncalibrated factor.
func Identity() Factor {
	return Factor{Value: 1}
}

// ReferenceProvided reports whether the caller supplied a reference height.
func (f Factor) ReferenceProvided() bool {
	return f.ReferenceHeightCm != nil
}

// Unit returns cm when a reference height was applied and scaffold units
// otherwise.
func (f Factor) Unit() Unit {
	if f.Applied {
		return UnitCentimetre
	}
	return UnitScaffold
}

// Linear scales a length.
func (f Factor) Linear(v float64) float64 { return v * f.Value }

// Area scales an area by the square of the factor.
func (f Factor) Area(v float64) float64 { return v * f.Value * f.Value }

// Volume scales a volume by the cube of the factor.
func (f Factor) Volume(v float64) float64 { return v * f.Value * f.Value * f.Value }

// HeightProxy is the distance from the nose to the mean of the ankles
// that were observed. ok is false when the nose or both ankles are missing.
func HeightProxy(sc *scaffold.Scaffold) (float64, bool) {
	if sc == nil {
		return 0, false
	}
	nose, ok := sc.Position(landmark.Nose)
	if !ok {
		return 0, false
	}
	ankles := sc.Points([]landmark.ID{landmark.LeftAnkle, landmark.RightAnkle})
	if len(ankles) == 0 {
		return 0, false
	}
	var base r3.Vec
	for _, a := range ankles {
		base = r3.Add(base, a)
	}
	base = r3.Scale(1/float64(len(ankles)), base)
	return Distance(nose, base), true
}

// Distance is the Euclidean distance between a and b, computed with
// math.Hypot so axis-aligned distances are exact.
func Distance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Hypot(d.X, math.Hypot(d.Y, d.Z))
}

// Calibrator computes calibration factors.
type Calibrator struct {
	Epsilon float64
}

// New returns a calibrator with the given degenerate-proxy threshold. A
// non-positive epsilon selects DefaultEpsilon.
func New(epsilon float64) *Calibrator {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Calibrator{Epsilon: epsilon}
}

// Calibrate derives the factor for sc. referenceHeightCm is optional.
// The returned Factor is always usable; a non-nil error wraps
// ErrDegenerateHeightProxy and means the identity factor was substituted.
func (c *Calibrator) Calibrate(sc *scaffold.Scaffold, referenceHeightCm *float64) (Factor, error) {
	f := Identity()
	proxy, ok := HeightProxy(sc)
	f.HeightProxy = proxy

	if referenceHeightCm == nil {
		return f, nil
	}
	ref := *referenceHeightCm
	f.ReferenceHeightCm = &ref

	if ref <= 0 || math.IsNaN(ref) || math.IsInf(ref, 0) {
		return Factor{}, fmt.Errorf("reference height must be a positive number, got %v", ref)
	}
	if !ok || proxy <= c.Epsilon {
		f.Degenerate = true
		return f, fmt.Errorf("%w: nose-to-ankle distance %g", ErrDegenerateHeightProxy, proxy)
	}

	f.Value = ref / proxy
	f.Applied = true
	return f, nil
}
