package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned for requests the pipeline refuses to start.
var ErrInvalidInput = errors.New("invalid input")

// Stage is a state of the run state machine.
type Stage int

const (
	StageValidating Stage = iota
	StageExtracting
	StageScaffoldBuilding
	StageMeshSynthesis
	StageMeshRefinement
	StageCalibrating
	StageMeasuring
	StageAssessing
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageValidating:       "validating",
	StageExtracting:       "extracting",
	StageScaffoldBuilding: "scaffold_building",
	StageMeshSynthesis:    "mesh_synthesis",
	StageMeshRefinement:   "mesh_refinement",
	StageCalibrating:      "calibrating",
	StageMeasuring:        "measuring",
	StageAssessing:        "assessing",
	StageDone:             "done",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText encodes the stage name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	st, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStage returns the stage called name.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Kind classifies a hard failure.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindVideoUnreadable      Kind = "video_unreadable"
	KindPoseEstimationFailed Kind = "pose_estimation_failed"
	KindNoLandmarksDetected  Kind = "no_landmarks_detected"
	KindInsufficientPoints   Kind = "insufficient_points_for_mesh"
	KindMeshRefinementFailed Kind = "mesh_refinement_failed"
	KindMeasurementFailed    Kind = "measurement_failed"
	KindCanceled             Kind = "canceled"
)

// Transition records one visited stage.
type Transition struct {
	Stage     Stage         `json:"stage"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Note      string        `json:"note,omitempty"`
}

// StageError is the terminal Failed state of a run: the stage that
// failed, the failure kind and the stages visited up to and including
// the failure.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
	Trace []Transition
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stages returns the visited stage sequence, ending in StageFailed.
func (e *StageError) Stages() []Stage {
	return stages(e.Trace)
}

func stages(trace []Transition) []Stage {
	out := make([]Stage, len(trace))
	for i, t := range trace {
		out[i] = t.Stage
	}
	return out
}
