// Package pose reads and writes landmark recordings: per-frame pose
// estimates captured once and replayed through the pipeline without a
// video model.
package pose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/frame"
	"github.com/banshee-data/bodymeasure/internal/landmark"
)

// maxRecordingSize bounds how much of a recording file is read.
const maxRecordingSize = 64 << 20

// Point is one landmark observation as stored on disk.
type Point struct {
	ID         landmark.ID `json:"id"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Z          float64     `json:"z"`
	Visibility float64     `json:"visibility"`
}

// FrameRecord holds the observations for one video frame. An empty
// Landmarks list records a frame with no detection.
type FrameRecord struct {
	Index     int     `json:"index"`
	Landmarks []Point `json:"landmarks"`
}

// Recording is a replayable sequence of per-frame pose estimates. It
// serves both as a frame provider and as an estimator.
type Recording struct {
	Source  string        `json:"source,omitempty"`
	FPS     float64       `json:"fps,omitempty"`
	Width   int           `json:"width,omitempty"`
	Height  int           `json:"height,omitempty"`
	Records []FrameRecord `json:"frames"`

	byIndex map[int]int
}

// Load reads a recording from a JSON file.
func Load(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() > maxRecordingSize {
		return nil, fmt.Errorf("recording %s too large: %d bytes (max %d)", path, info.Size(), maxRecordingSize)
	}

	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.Source == "" {
		r.Source = path
	}
	return r, nil
}

// Decode parses a recording and indexes its frames.
func Decode(rd io.Reader) (*Recording, error) {
	var r Recording
	dec := json.NewDecoder(io.LimitReader(rd, maxRecordingSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	if err := r.index(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Recording) index() error {
	sort.SliceStable(r.Records, func(i, j int) bool { return r.Records[i].Index < r.Records[j].Index })
	r.byIndex = make(map[int]int, len(r.Records))
	for i, fr := range r.Records {
		if fr.Index < 0 {
			return fmt.Errorf("frame index %d is negative", fr.Index)
		}
		if _, dup := r.byIndex[fr.Index]; dup {
			return fmt.Errorf("frame index %d appears more than once", fr.Index)
		}
		r.byIndex[fr.Index] = i
	}
	return nil
}

// Encode writes the recording as indented JSON.
func (r *Recording) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Save writes the recording to path.
func (r *Recording) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write recording: %w", err)
	}
	return f.Close()
}

// Append records the observations for frame index, replacing any
// earlier entry for the same frame.
func (r *Recording) Append(index int, set landmark.Set) {
	if r.byIndex == nil {
		r.byIndex = make(map[int]int)
	}
	rec := FrameRecord{Index: index, Landmarks: make([]Point, 0, len(set))}
	for _, o := range set {
		rec.Landmarks = append(rec.Landmarks, Point{
			ID: o.ID, X: o.Position.X, Y: o.Position.Y, Z: o.Position.Z, Visibility: o.Visibility,
		})
	}
	if i, ok := r.byIndex[index]; ok {
		r.Records[i] = rec
		return
	}
	r.byIndex[index] = len(r.Records)
	r.Records = append(r.Records, rec)
}

// Info returns the video metadata carried by the recording.
func (r *Recording) Info() frame.VideoInfo {
	count := len(r.Records)
	if count > 0 {
		count = r.Records[len(r.Records)-1].Index + 1
	}
	return frame.VideoInfo{
		Source:      r.Source,
		FPS:         r.FPS,
		FrameCount:  count,
		DurationSec: frame.Duration(count, r.FPS),
		Width:       r.Width,
		Height:      r.Height,
	}
}

// Frames yields up to maxFrames recorded frames, spread evenly over the
// recording, in index order. The frames carry no pixels.
func (r *Recording) Frames(ctx context.Context, maxFrames int, yield func(frame.Frame) error) (frame.VideoInfo, error) {
	info := r.Info()
	if len(r.Records) == 0 {
		return info, fmt.Errorf("%w: recording %q has no frames", frame.ErrVideoUnreadable, r.Source)
	}
	for _, i := range frame.SampleIndices(len(r.Records), maxFrames) {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		fr := r.Records[i]
		if err := yield(frame.Frame{Index: fr.Index, Timestamp: frame.Timestamp(fr.Index, r.FPS)}); err != nil {
			return info, err
		}
		info.Sampled++
	}
	return info, nil
}

// Estimate returns the recorded observations for f. A frame absent from
// the recording, or recorded without landmarks, is a frame with no
// detection.
func (r *Recording) Estimate(_ context.Context, f frame.Frame) (landmark.Set, error) {
	i, ok := r.byIndex[f.Index]
	if !ok {
		return nil, nil
	}
	pts := r.Records[i].Landmarks
	if len(pts) == 0 {
		return nil, nil
	}
	set := make(landmark.Set, len(pts))
	for k, p := range pts {
		set[k] = landmark.Observation{
			ID:         p.ID,
			Position:   r3.Vec{X: p.X, Y: p.Y, Z: p.Z},
			Visibility: p.Visibility,
		}
	}
	return set, nil
}
