package landmark

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ID identifies one named anatomical landmark. Values follow the 33-point
// BlazePose topology so recorded estimator output can be indexed directly.
type ID int

const (
	Nose ID = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// Count is the number of landmarks in the enumeration.
	Count int = iota
)

var names = [Count]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

var byName = func() map[string]ID {
	m := make(map[string]ID, Count)
	for i, n := range names {
		m[n] = ID(i)
	}
	return m
}()

// KeyBody lists the torso and limb joints used to judge whether a frame
// shows enough of the body to be trusted.
var KeyBody = []ID{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// Valid reports whether id is inside the enumeration.
func (id ID) Valid() bool {
	return id >= 0 && int(id) < Count
}

// String returns the snake_case landmark name.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("landmark(%d)", int(id))
	}
	return names[id]
}

// MarshalText encodes the landmark as its name.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid landmark id %d", int(id))
	}
	return []byte(names[id]), nil
}

// UnmarshalText decodes a landmark name.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse resolves a landmark name (case-insensitive, '-' or '_' separated).
func Parse(name string) (ID, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if id, ok := byName[key]; ok {
		return id, nil
	}
	return -1, fmt.Errorf("unknown landmark %q", name)
}

// Observation is one landmark reported by the pose estimator for one frame.
// Position is in metres in a body-relative frame with Y as the height axis.
type Observation struct {
	ID         ID
	Position   r3.Vec
	Visibility float64
}

// Usable reports whether the observation can contribute to aggregation:
// the id is known and every coordinate is finite.
func (o Observation) Usable() bool {
	return o.ID.Valid() && finite(o.Position.X) && finite(o.Position.Y) && finite(o.Position.Z)
}

// Set holds the observations reported for a single frame.
type Set []Observation

// Lookup returns the first usable observation for id.
func (s Set) Lookup(id ID) (Observation, bool) {
	for _, o := range s {
		if o.ID == id && o.Usable() {
			return o, true
		}
	}
	return Observation{}, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
