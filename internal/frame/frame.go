// Package frame defines the raster frames and video metadata exchanged
// between frame providers and pose estimators.
package frame

import (
	"errors"
	"image"
	"time"
)

// ErrVideoUnreadable is returned when a video resource cannot be opened
// or yields no frames.
var ErrVideoUnreadable = errors.New("video unreadable")

// Frame is one sampled frame. Index is the position in the source video,
// not in the sample. Image may be nil for providers that carry landmarks
// instead of pixels.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// VideoInfo describes the source a run was computed from.
type VideoInfo struct {
	Source     string  `json:"source"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	// DurationSec is FrameCount / FPS, or 0 when FPS is unknown.
	DurationSec float64 `json:"duration_sec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	// Sampled is the number of frames handed to the estimator.
	Sampled int `json:"sampled"`
	// Rejected counts frames dropped by the provider for being too dark,
	// too bright or too blurred.
	Rejected int `json:"rejected,omitempty"`
}

// Timestamp returns the presentation time of frame index at fps.
func Timestamp(index int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}

// Duration returns frameCount / fps in seconds, or 0 when fps is unknown.
func Duration(frameCount int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frameCount) / fps
}

// SampleIndices picks at most max indices spread evenly over [0, total).
// Every frame is returned when total <= max or max is not positive.
func SampleIndices(total, max int) []int {
	if total <= 0 {
		return nil
	}
	if max <= 0 || total <= max {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, max)
	for i := range out {
		out[i] = i * total / max
	}
	return out
}
