package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/bodymeasure/internal/calibration"
	"github.com/banshee-data/bodymeasure/internal/config"
	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/mesh"
	"github.com/banshee-data/bodymeasure/internal/quality"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
)

// Config holds the per-stage parameters of a pipeline.
type Config struct {
	MaxFrames int
	// Workers bounds concurrent Estimate calls. Values below one run the
	// estimator on a single goroutine.
	Workers int
	// Visibility screens each frame's observations before aggregation.
	// A zero MinVisibleLandmarks disables screening.
	Visibility landmark.FrameCriteria
	// Timeout bounds the whole run. Zero means no limit beyond ctx.
	Timeout time.Duration

	Aggregation scaffold.StrategyInterface

	SynthesisIterations  int
	RefinementIterations int
	SmoothingLambda      float64
	MergeTolerance       float64
	MaxHoleEdges         int

	HeightProxyEpsilon float64
	SliceTolerance     float64

	Quality quality.Thresholds
}

// DefaultConfig returns the configuration used when no tuning file is given.
func DefaultConfig() Config {
	return Config{
		MaxFrames:            30,
		Workers:              4,
		Visibility:           landmark.FrameCriteria{MinVisibility: 0.5},
		Aggregation:          scaffold.MeanStrategy{},
		SynthesisIterations:  5,
		RefinementIterations: 3,
		SmoothingLambda:      mesh.DefaultSmoothingLambda,
		MergeTolerance:       1e-5,
		MaxHoleEdges:         4,
		HeightProxyEpsilon:   calibration.DefaultEpsilon,
		SliceTolerance:       measure.DefaultSliceTolerance,
		Quality:              quality.DefaultThresholds(),
	}
}

// ConfigFromTuning builds a Config from a tuning file. Keys missing from
// the file take their documented defaults.
func ConfigFromTuning(tc *config.TuningConfig) (Config, error) {
	if tc == nil {
		return DefaultConfig(), nil
	}
	if err := tc.Validate(); err != nil {
		return Config{}, fmt.Errorf("tuning config: %w", err)
	}
	strategy, err := scaffold.NewStrategy(tc.GetAggregationStrategy(), tc.GetTrimFraction())
	if err != nil {
		return Config{}, fmt.Errorf("tuning config: %w", err)
	}
	return Config{
		MaxFrames: tc.GetMaxFrames(),
		Workers:   tc.GetEstimatorWorkers(),
		Visibility: landmark.FrameCriteria{
			MinVisibility:       tc.GetMinVisibility(),
			MinVisibleLandmarks: tc.GetMinVisibleLandmarks(),
		},
		Timeout:              tc.GetRunTimeout(),
		Aggregation:          strategy,
		SynthesisIterations:  tc.GetSynthSmoothingIterations(),
		RefinementIterations: tc.GetRefineSmoothingIterations(),
		SmoothingLambda:      tc.GetSmoothingLambda(),
		MergeTolerance:       tc.GetMergeTolerance(),
		MaxHoleEdges:         tc.GetMaxHoleEdges(),
		HeightProxyEpsilon:   tc.GetHeightProxyEpsilon(),
		SliceTolerance:       tc.GetSliceTolerance(),
		Quality: quality.Thresholds{
			ExcellentVertices: tc.GetQualityExcellentVertices(),
			GoodVertices:      tc.GetQualityGoodVertices(),
			FairVertices:      tc.GetQualityFairVertices(),
			MaxTiltDeg:        tc.GetMaxTiltDegrees(),
		},
	}, nil
}
