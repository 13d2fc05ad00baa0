package measure

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/bodymeasure/internal/calibration"
)

// Metadata describes how a Set was produced.
type Metadata struct {
	CalibrationFactor       float64          `json:"calibration_factor"`
	CalibrationApplied      bool             `json:"calibration_applied"`
	ReferenceHeightProvided bool             `json:"reference_height_provided"`
	HeightProxy             float64          `json:"height_proxy"`
	Unit                    calibration.Unit `json:"unit"`
	// Unavailable maps a measurement that could not be computed to why.
	Unavailable map[Name]string `json:"unavailable,omitempty"`
	// ZeroCircumferences lists circumferences whose band held too few
	// vertices; their value is 0.
	ZeroCircumferences []Name   `json:"zero_circumferences,omitempty"`
	Slices             []Slice  `json:"slices,omitempty"`
	BodyAxisTiltDeg    *float64 `json:"body_axis_tilt_deg,omitempty"`
}

// Degraded reports whether any measurement is missing or zero.
func (m Metadata) Degraded() bool {
	return len(m.Unavailable) > 0 || len(m.ZeroCircumferences) > 0
}

// clone returns a deep copy of m. Nil fields stay nil.
func (m Metadata) clone() Metadata {
	out := m
	if m.Unavailable != nil {
		out.Unavailable = make(map[Name]string, len(m.Unavailable))
		for k, v := range m.Unavailable {
			out.Unavailable[k] = v
		}
	}
	if m.ZeroCircumferences != nil {
		out.ZeroCircumferences = append([]Name(nil), m.ZeroCircumferences...)
	}
	if m.Slices != nil {
		out.Slices = make([]Slice, len(m.Slices))
		for i, sl := range m.Slices {
			if sl.Hull != nil {
				sl.Hull = append([]r2.Vec(nil), sl.Hull...)
			}
			out.Slices[i] = sl
		}
	}
	if m.BodyAxisTiltDeg != nil {
		tilt := *m.BodyAxisTiltDeg
		out.BodyAxisTiltDeg = &tilt
	}
	return out
}

// Set is an immutable collection of calibrated measurements.
type Set struct {
	values   map[Name]float64
	metadata Metadata
}

// NewSet copies values into a new Set.
func NewSet(values map[Name]float64, meta Metadata) *Set {
	s := &Set{values: make(map[Name]float64, len(values)), metadata: meta.clone()}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value of n and whether it was computed.
func (s *Set) Get(n Name) (float64, bool) {
	v, ok := s.values[n]
	return v, ok
}

// Value returns the value of n, or 0 when it was not computed.
func (s *Set) Value(n Name) float64 {
	return s.values[n]
}

// Names returns the computed measurements in taxonomy order.
func (s *Set) Names() []Name {
	out := make([]Name, 0, len(s.values))
	for _, n := range Taxonomy {
		if _, ok := s.values[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of computed measurements.
func (s *Set) Len() int { return len(s.values) }

// Metadata returns a copy of the set metadata.
func (s *Set) Metadata() Metadata { return s.metadata.clone() }

// Values returns a copy of the measurement map.
func (s *Set) Values() map[Name]float64 {
	out := make(map[Name]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// UnitFor returns the display unit of n, e.g. "cm²".
func (s *Set) UnitFor(n Name) string {
	base := string(s.metadata.Unit)
	switch n.Kind() {
	case KindArea:
		return base + "²"
	case KindVolume:
		return base + "³"
	default:
		return base
	}
}

// Format renders one value with its unit.
func (s *Set) Format(n Name) (string, bool) {
	v, ok := s.values[n]
	if !ok {
		return "", false
	}
	if s.metadata.Unit == calibration.UnitCentimetre {
		return fmt.Sprintf("%.2f %s", v, s.UnitFor(n)), true
	}
	return fmt.Sprintf("%.4f %s", v, s.UnitFor(n)), true
}

// Formatted returns every computed value rendered with its unit.
func (s *Set) Formatted() map[Name]string {
	out := make(map[Name]string, len(s.values))
	for n := range s.values {
		out[n], _ = s.Format(n)
	}
	return out
}

type setJSON struct {
	Values   map[Name]float64 `json:"values"`
	Metadata Metadata         `json:"metadata"`
}

// MarshalJSON encodes the set as {"values": ..., "metadata": ...}.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(setJSON{Values: s.values, Metadata: s.metadata})
}

// UnmarshalJSON decodes the MarshalJSON form.
func (s *Set) UnmarshalJSON(b []byte) error {
	var raw setJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = *NewSet(raw.Values, raw.Metadata)
	return nil
}
