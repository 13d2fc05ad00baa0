// Package video decodes frames from video files with OpenCV.
package video

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/banshee-data/bodymeasure/internal/frame"
)

// Frame quality limits for the optional filter. Brightness is the mean
// grey level; sharpness is the variance of the Laplacian.
const (
	MinBrightness = 40
	MaxBrightness = 220
	MinSharpness  = 100
)

// Provider yields sampled frames from one video file.
type Provider struct {
	Path string
	// FilterLowQuality drops frames that are too dark, too bright or too
	// blurred before they reach the estimator.
	FilterLowQuality bool
}

// NewProvider returns a provider for the video at path.
func NewProvider(path string) *Provider {
	return &Provider{Path: path}
}

// Probe opens the video and reports its metadata without decoding frames.
func (p *Provider) Probe() (frame.VideoInfo, error) {
	vc, err := p.open()
	if err != nil {
		return frame.VideoInfo{}, err
	}
	defer vc.Close()
	return p.info(vc), nil
}

func (p *Provider) open() (*gocv.VideoCapture, error) {
	vc, err := gocv.VideoCaptureFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", frame.ErrVideoUnreadable, p.Path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s: cannot open", frame.ErrVideoUnreadable, p.Path)
	}
	return vc, nil
}

func (p *Provider) info(vc *gocv.VideoCapture) frame.VideoInfo {
	fps := vc.Get(gocv.VideoCaptureFPS)
	count := int(vc.Get(gocv.VideoCaptureFrameCount))
	return frame.VideoInfo{
		Source:      p.Path,
		FPS:         fps,
		FrameCount:  count,
		DurationSec: frame.Duration(count, fps),
		Width:       int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Frames decodes the video sequentially and yields up to maxFrames
// frames spread evenly over it. Each decoded Mat is released before the
// next is read, including when yield fails.
func (p *Provider) Frames(ctx context.Context, maxFrames int, yield func(frame.Frame) error) (frame.VideoInfo, error) {
	vc, err := p.open()
	if err != nil {
		return frame.VideoInfo{}, err
	}
	defer vc.Close()

	info := p.info(vc)
	wanted := make(map[int]bool)
	for _, i := range frame.SampleIndices(info.FrameCount, maxFrames) {
		wanted[i] = true
	}
	// Containers that do not report a frame count are read up to maxFrames.
	unknownLength := info.FrameCount <= 0

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		if unknownLength && maxFrames > 0 && info.Sampled+info.Rejected >= maxFrames {
			break
		}
		if !unknownLength && index >= info.FrameCount {
			break
		}

		done, err := p.readOne(vc, index, info.FPS, unknownLength || wanted[index], &info, yield)
		if err != nil {
			return info, err
		}
		if done {
			break
		}
	}

	if info.Sampled == 0 && info.Rejected == 0 {
		return info, fmt.Errorf("%w: %s: no frames decoded", frame.ErrVideoUnreadable, p.Path)
	}
	return info, nil
}

// readOne decodes the next frame and, when keep is set, converts and
// yields it. done reports the end of the stream.
func (p *Provider) readOne(vc *gocv.VideoCapture, index int, fps float64, keep bool, info *frame.VideoInfo, yield func(frame.Frame) error) (done bool, err error) {
	img := gocv.NewMat()
	defer img.Close()

	if ok := vc.Read(&img); !ok {
		return true, nil
	}
	if !keep || img.Empty() {
		return false, nil
	}

	if p.FilterLowQuality {
		if q := Assess(img); !q.Good() {
			info.Rejected++
			return false, nil
		}
	}

	rgba, err := img.ToImage()
	if err != nil {
		return false, fmt.Errorf("convert frame %d: %w", index, err)
	}
	if err := yield(frame.Frame{Index: index, Timestamp: frame.Timestamp(index, fps), Image: rgba}); err != nil {
		return false, err
	}
	info.Sampled++
	return false, nil
}

// Quality holds the image statistics used by the frame filter.
type Quality struct {
	Brightness float64
	Sharpness  float64
}

// Good reports whether the frame is neither too dark, too bright nor too
// blurred.
func (q Quality) Good() bool {
	return q.Brightness > MinBrightness && q.Brightness < MaxBrightness && q.Sharpness > MinSharpness
}

// Assess measures the brightness and sharpness of a BGR frame.
func Assess(img gocv.Mat) Quality {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return Quality{
		Brightness: gray.Mean().Val1,
		Sharpness:  sd * sd,
	}
}
