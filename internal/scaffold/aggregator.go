package scaffold

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bodymeasure/internal/landmark"
)

// StrategyInterface abstracts how the per-frame samples of one landmark are
// combined into a single position. The default is the arithmetic mean; the
// trimmed mean is available for footage with intermittent occlusion.
type StrategyInterface interface {
	// Combine reduces a non-empty sample list to one position.
	Combine(samples []r3.Vec) r3.Vec

	// Name returns the config identifier of the strategy.
	Name() string
}

// Strategy names accepted by NewStrategy.
const (
	StrategyMean        = "mean"
	StrategyTrimmedMean = "trimmed_mean"
)

// NewStrategy resolves a strategy by config name.
func NewStrategy(name string, trimFraction float64) (StrategyInterface, error) {
	switch name {
	case "", StrategyMean:
		return MeanStrategy{}, nil
	case StrategyTrimmedMean:
		if trimFraction < 0 || trimFraction >= 0.5 {
			return nil, fmt.Errorf("trim fraction must be in [0, 0.5), got %g", trimFraction)
		}
		return TrimmedMeanStrategy{Fraction: trimFraction}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", name)
	}
}

// MeanStrategy is the per-axis arithmetic mean. No outlier rejection.
type MeanStrategy struct{}

// Name implements StrategyInterface.
func (MeanStrategy) Name() string { return StrategyMean }

// Combine implements StrategyInterface.
func (MeanStrategy) Combine(samples []r3.Vec) r3.Vec {
	xs, ys, zs := split(samples)
	return r3.Vec{X: shiftedMean(xs), Y: shiftedMean(ys), Z: shiftedMean(zs)}
}

// TrimmedMeanStrategy drops the lowest and highest Fraction of samples on
// each axis independently before averaging.
type TrimmedMeanStrategy struct {
	Fraction float64
}

// Name implements StrategyInterface.
func (TrimmedMeanStrategy) Name() string { return StrategyTrimmedMean }

// Combine implements StrategyInterface.
func (t TrimmedMeanStrategy) Combine(samples []r3.Vec) r3.Vec {
	xs, ys, zs := split(samples)
	return r3.Vec{X: t.trim(xs), Y: t.trim(ys), Z: t.trim(zs)}
}

func (t TrimmedMeanStrategy) trim(v []float64) float64 {
	sort.Float64s(v)
	k := int(math.Floor(t.Fraction * float64(len(v))))
	if len(v)-2*k < 1 {
		k = 0
	}
	return shiftedMean(v[k : len(v)-k])
}

func split(samples []r3.Vec) (xs, ys, zs []float64) {
	xs = make([]float64, len(samples))
	ys = make([]float64, len(samples))
	zs = make([]float64, len(samples))
	for i, p := range samples {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return xs, ys, zs
}

// shiftedMean averages deviations from the first sample so that identical
// samples reproduce their value exactly.
func shiftedMean(v []float64) float64 {
	base := v[0]
	dev := make([]float64, len(v))
	for i, x := range v {
		dev[i] = x - base
	}
	return base + stat.Mean(dev, nil)
}

// Aggregator fuses per-frame observation sets into a Scaffold.
type Aggregator struct {
	strategy StrategyInterface
}

// NewAggregator creates an aggregator using strategy. A nil strategy selects MeanStrategy.
func NewAggregator(strategy StrategyInterface) *Aggregator {
	if strategy == nil {
		strategy = MeanStrategy{}
	}
	return &Aggregator{strategy: strategy}
}

// Strategy returns the combining strategy in use.
func (a *Aggregator) Strategy() StrategyInterface {
	return a.strategy
}

// Aggregate builds a scaffold from every frame's observations. The input
// must be the complete set of frames with detections; there is no
// incremental mode.
func (a *Aggregator) Aggregate(frames []landmark.Set) (*Scaffold, error) {
	if len(frames) == 0 {
		return nil, ErrNoLandmarksDetected
	}

	var samples [landmark.Count][]r3.Vec
	for _, set := range frames {
		for _, o := range set {
			if !o.Usable() {
				continue
			}
			samples[o.ID] = append(samples[o.ID], o.Position)
		}
	}

	s := &Scaffold{frames: len(frames)}
	for i := range samples {
		if len(samples[i]) == 0 {
			continue
		}
		s.positions[i] = a.strategy.Combine(samples[i])
		s.present[i] = true
		s.samples[i] = len(samples[i])
	}
	if s.Present() == 0 {
		return nil, ErrNoLandmarksDetected
	}
	return s, nil
}
