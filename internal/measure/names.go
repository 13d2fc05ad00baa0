package measure

import (
	"fmt"
	"strings"
)

// Name identifies one measurement in the fixed taxonomy.
type Name string

const (
	Height             Name = "height"
	ShoulderWidth      Name = "shoulder_width"
	ChestCircumference Name = "chest_circumference"
	WaistCircumference Name = "waist_circumference"
	HipWidth           Name = "hip_width"
	HipCircumference   Name = "hip_circumference"
	ArmLength          Name = "arm_length"
	UpperArmLength     Name = "upper_arm_length"
	ForearmLength      Name = "forearm_length"
	LegLength          Name = "leg_length"
	Inseam             Name = "inseam"
	TorsoLength        Name = "torso_length"
	MeshVolume         Name = "mesh_volume"
	MeshSurfaceArea    Name = "mesh_surface_area"
)

// Taxonomy lists every measurement in report order.
var Taxonomy = []Name{
	Height,
	ShoulderWidth,
	ChestCircumference,
	WaistCircumference,
	HipWidth,
	HipCircumference,
	ArmLength,
	UpperArmLength,
	ForearmLength,
	LegLength,
	Inseam,
	TorsoLength,
	MeshVolume,
	MeshSurfaceArea,
}

// Circumferences lists the height-banded measurements.
var Circumferences = []Name{ChestCircumference, WaistCircumference, HipCircumference}

// Kind is the dimension of a measurement, which decides how calibration
// scales it.
type Kind int

const (
	KindLength Kind = iota
	KindCircumference
	KindArea
	KindVolume
)

// Kind returns the dimension of n.
func (n Name) Kind() Kind {
	switch n {
	case ChestCircumference, WaistCircumference, HipCircumference:
		return KindCircumference
	case MeshSurfaceArea:
		return KindArea
	case MeshVolume:
		return KindVolume
	default:
		return KindLength
	}
}

// Label returns a title-cased display label, e.g. "Shoulder Width".
func (n Name) Label() string {
	words := strings.Split(string(n), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseName returns the taxonomy entry called s.
func ParseName(s string) (Name, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range Taxonomy {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown measurement %q", s)
}
