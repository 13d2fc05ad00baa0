package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/bodymeasure/internal/calibration"
	"github.com/banshee-data/bodymeasure/internal/frame"
	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/mesh"
	"github.com/banshee-data/bodymeasure/internal/quality"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
	"github.com/banshee-data/bodymeasure/internal/timeutil"
)

// FrameProvider yields up to maxFrames frames in source order. It returns
// an error wrapping frame.ErrVideoUnreadable when the source cannot be
// opened or holds no frames.
type FrameProvider interface {
	Frames(ctx context.Context, maxFrames int, yield func(frame.Frame) error) (frame.VideoInfo, error)
}

// Estimator detects landmarks in one frame. A nil set with a nil error
// means no person was detected.
type Estimator interface {
	Estimate(ctx context.Context, f frame.Frame) (landmark.Set, error)
}

// Request is one pipeline invocation.
type Request struct {
	Frames    FrameProvider
	Estimator Estimator
	// ReferenceHeightCm calibrates measurements to centimetres when set.
	ReferenceHeightCm *float64
}

// Processing counts what happened to the sampled frames.
type Processing struct {
	FramesSampled        int `json:"frames_sampled"`
	FramesWithDetections int `json:"frames_with_detections"`
	// FramesRejected counts frames dropped by the visibility screen.
	FramesRejected   int `json:"frames_rejected"`
	FramesAggregated int `json:"frames_aggregated"`
	LandmarksPresent int `json:"landmarks_present"`
}

// Result is the bundle produced by a successful run.
type Result struct {
	Video        frame.VideoInfo    `json:"video"`
	Processing   Processing         `json:"processing"`
	Mesh         mesh.Stats         `json:"mesh"`
	Refinement   mesh.RefineStats   `json:"refinement"`
	Calibration  calibration.Factor `json:"calibration"`
	Measurements *measure.Set       `json:"measurements"`
	Quality      quality.Report     `json:"quality"`
	Trace        []Transition       `json:"trace"`
	Duration     time.Duration      `json:"duration_ns"`

	// RefinedMesh is the final surface, kept for export.
	RefinedMesh *mesh.Mesh `json:"-"`
}

// Stages returns the visited stage sequence, ending in StageDone.
func (r *Result) Stages() []Stage {
	return stages(r.Trace)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for stage timings.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline runs the measurement stages. A Pipeline holds configuration
// only and may be used for concurrent runs.
type Pipeline struct {
	cfg   Config
	clock timeutil.Clock

	aggregator  *scaffold.Aggregator
	synthesizer *mesh.Synthesizer
	refiner     *mesh.Refiner
	calibrator  *calibration.Calibrator
	extractor   *measure.Extractor
}

// New returns a pipeline for cfg.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		clock:       timeutil.RealClock{},
		aggregator:  scaffold.NewAggregator(cfg.Aggregation),
		synthesizer: mesh.NewSynthesizer(cfg.SynthesisIterations, cfg.SmoothingLambda),
		refiner: &mesh.Refiner{
			MergeTolerance:      cfg.MergeTolerance,
			MaxHoleEdges:        cfg.MaxHoleEdges,
			SmoothingIterations: cfg.RefinementIterations,
			Lambda:              cfg.SmoothingLambda,
		},
		calibrator: calibration.New(cfg.HeightProxyEpsilon),
		extractor:  measure.NewExtractor(cfg.SliceTolerance),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// run is the state of one invocation. It is discarded when Run returns.
type run struct {
	clock timeutil.Clock
	trace []Transition
	start time.Time
}

func (r *run) enter(s Stage) {
	now := r.clock.Now()
	r.close(now)
	r.trace = append(r.trace, Transition{Stage: s, StartedAt: now})
}

func (r *run) close(now time.Time) {
	if n := len(r.trace); n > 0 && r.trace[n-1].Duration == 0 {
		r.trace[n-1].Duration = now.Sub(r.trace[n-1].StartedAt)
	}
}

func (r *run) note(format string, args ...interface{}) {
	if n := len(r.trace); n > 0 {
		msg := fmt.Sprintf(format, args...)
		if r.trace[n-1].Note != "" {
			msg = r.trace[n-1].Note + "; " + msg
		}
		r.trace[n-1].Note = msg
	}
}

func (r *run) current() Stage {
	if len(r.trace) == 0 {
		return StageValidating
	}
	return r.trace[len(r.trace)-1].Stage
}

func (r *run) fail(kind Kind, err error) *StageError {
	failed := r.current()
	r.enter(StageFailed)
	r.note("%s", kind)
	opsf("run failed in %s (%s): %v", failed, kind, err)
	return &StageError{Stage: failed, Kind: kind, Err: err, Trace: r.trace}
}

// checkpoint fails the run when ctx is done.
func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return r.fail(KindCanceled, err)
	}
	return nil
}

// Run executes every stage for req. On success the result's trace ends in
// StageDone. Any hard failure returns a *StageError and no result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	r := &run{clock: p.clock}
	r.start = p.clock.Now()
	r.enter(StageValidating)

	if err := validate(req); err != nil {
		return nil, r.fail(KindInvalidInput, err)
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	res := &Result{}

	r.enter(StageExtracting)
	sets, info, err := p.extract(ctx, req)
	if err != nil {
		return nil, r.fail(extractKind(ctx, err), err)
	}
	res.Video = info
	res.Processing.FramesSampled = len(sets)
	frames := p.screen(sets, &res.Processing)
	r.note("%d sampled, %d with detections, %d rejected", res.Processing.FramesSampled,
		res.Processing.FramesWithDetections, res.Processing.FramesRejected)
	diagf("extracted %d frames from %s: %d with detections, %d rejected", len(sets), info.Source,
		res.Processing.FramesWithDetections, res.Processing.FramesRejected)
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageScaffoldBuilding)
	sc, err := p.aggregator.Aggregate(frames)
	if err != nil {
		return nil, r.fail(KindNoLandmarksDetected, err)
	}
	res.Processing.FramesAggregated = sc.Frames()
	res.Processing.LandmarksPresent = sc.Present()
	diagf("scaffold: %d landmarks from %d frames (%s)", sc.Present(), sc.Frames(), p.aggregator.Strategy().Name())
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageMeshSynthesis)
	m, err := p.synthesizer.Synthesize(sc)
	if err != nil {
		return nil, r.fail(KindInsufficientPoints, err)
	}
	r.note("%s", m.Construction)
	diagf("synthesized %s mesh: %d vertices, %d faces", m.Construction, len(m.Vertices), len(m.Faces))
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageMeshRefinement)
	rs, err := p.refiner.Refine(m)
	if err != nil {
		return nil, r.fail(KindMeshRefinementFailed, err)
	}
	res.Refinement = rs
	res.RefinedMesh = m
	res.Mesh = m.Stats()
	diagf("refined mesh: %d->%d vertices, %d->%d faces, watertight=%t",
		rs.VerticesBefore, rs.VerticesAfter, rs.FacesBefore, rs.FacesAfter, rs.WatertightAfter)
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageCalibrating)
	factor, err := p.calibrator.Calibrate(sc, req.ReferenceHeightCm)
	switch {
	case errors.Is(err, calibration.ErrDegenerateHeightProxy):
		r.note("degenerate height proxy, factor 1")
		opsf("calibration skipped: %v", err)
	case err != nil:
		return nil, r.fail(KindInvalidInput, err)
	}
	res.Calibration = factor
	diagf("calibration factor %g (applied=%t, proxy=%g)", factor.Value, factor.Applied, factor.HeightProxy)
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageMeasuring)
	set, err := p.extractor.Extract(sc, m, factor)
	if err != nil {
		return nil, r.fail(KindMeasurementFailed, err)
	}
	res.Measurements = set
	if meta := set.Metadata(); meta.Degraded() {
		r.note("%d unavailable, %d zero circumferences", len(meta.Unavailable), len(meta.ZeroCircumferences))
	}
	diagf("extracted %d measurements in %s", set.Len(), factor.Unit())
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StageAssessing)
	res.Quality = quality.Assess(res.Mesh, set.Metadata(), p.cfg.Quality)
	diagf("quality: mesh=%s confidence=%s", res.Quality.MeshQuality, res.Quality.Confidence)

	r.enter(StageDone)
	res.Trace = r.trace
	res.Duration = r.trace[len(r.trace)-1].StartedAt.Sub(r.start)
	return res, nil
}

func validate(req Request) error {
	if req.Frames == nil {
		return fmt.Errorf("%w: no frame provider", ErrInvalidInput)
	}
	if req.Estimator == nil {
		return fmt.Errorf("%w: no estimator", ErrInvalidInput)
	}
	if h := req.ReferenceHeightCm; h != nil && (*h <= 0 || math.IsNaN(*h) || math.IsInf(*h, 0)) {
		return fmt.Errorf("%w: reference height must be a positive number, got %v", ErrInvalidInput, *h)
	}
	return nil
}

var errEstimate = errors.New("pose estimation failed")

// extract pulls frames from the provider and estimates each on a bounded
// worker group. The returned sets are in provider order; frames with no
// detection have a nil set.
func (p *Pipeline) extract(ctx context.Context, req Request) ([]landmark.Set, frame.VideoInfo, error) {
	g, gctx := errgroup.WithContext(ctx)
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	var (
		mu      sync.Mutex
		results = make(map[int]landmark.Set)
		seq     int
	)
	yield := func(f frame.Frame) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		slot := seq
		seq++
		g.Go(func() error {
			set, err := req.Estimator.Estimate(gctx, f)
			if err != nil {
				return fmt.Errorf("%w: frame %d: %w", errEstimate, f.Index, err)
			}
			tracef("frame %d at %v: %d landmarks", f.Index, f.Timestamp, len(set))
			mu.Lock()
			results[slot] = set
			mu.Unlock()
			return nil
		})
		return nil
	}

	info, ferr := req.Frames.Frames(gctx, p.cfg.MaxFrames, yield)
	if werr := g.Wait(); werr != nil {
		return nil, info, werr
	}
	if ferr != nil {
		return nil, info, ferr
	}

	sets := make([]landmark.Set, seq)
	for i := range sets {
		sets[i] = results[i]
	}
	return sets, info, nil
}

func extractKind(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, errEstimate):
		return KindPoseEstimationFailed
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindVideoUnreadable
	}
}

// screen drops frames with no detection and, when enabled, frames that
// fail the visibility criteria.
func (p *Pipeline) screen(sets []landmark.Set, st *Processing) []landmark.Set {
	kept := make([]landmark.Set, 0, len(sets))
	reasons := make(map[string]int)
	for _, set := range sets {
		if len(set) == 0 {
			continue
		}
		st.FramesWithDetections++
		if p.cfg.Visibility.Enabled() {
			if q := landmark.AssessFrame(set, p.cfg.Visibility); !q.Valid {
				st.FramesRejected++
				reasons[q.Reason]++
				continue
			}
		}
		kept = append(kept, set)
	}
	if len(reasons) > 0 {
		keys := make([]string, 0, len(reasons))
		for k := range reasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			diagf("visibility screen rejected %d frames: %s", reasons[k], k)
		}
	}
	return kept
}
