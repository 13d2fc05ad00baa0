package video

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/banshee-data/bodymeasure/internal/frame"
)

func TestQualityGood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		q    Quality
		want bool
	}{
		{"well lit and sharp", Quality{Brightness: 120, Sharpness: 350}, true},
		{"too dark", Quality{Brightness: 30, Sharpness: 350}, false},
		{"overexposed", Quality{Brightness: 230, Sharpness: 350}, false},
		{"blurred", Quality{Brightness: 120, Sharpness: 40}, false},
		{"at brightness limit", Quality{Brightness: MinBrightness, Sharpness: 350}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Good())
		})
	}
}

func TestAssess_FlatGreyFrameIsBlurred(t *testing.T) {
	t.Parallel()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	q := Assess(img)
	assert.InDelta(t, 128, q.Brightness, 1)
	assert.InDelta(t, 0, q.Sharpness, 1e-9)
	assert.False(t, q.Good())
}

func TestFrames_Unreadable(t *testing.T) {
	t.Parallel()

	p := NewProvider(filepath.Join(t.TempDir(), "missing.mp4"))
	_, err := p.Frames(context.Background(), 10, func(frame.Frame) error { return nil })
	assert.ErrorIs(t, err, frame.ErrVideoUnreadable)

	_, err = p.Probe()
	assert.ErrorIs(t, err, frame.ErrVideoUnreadable)
}
