package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Aggregation strategy names accepted by aggregation_strategy.
const (
	AggregationMean        = "mean"
	AggregationTrimmedMean = "trimmed_mean"
)

// TuningConfig represents the root configuration for pipeline tuning
// parameters. Every field is optional; the Get* methods supply defaults
// for fields left out of the JSON.
type TuningConfig struct {
	// Frame sampling and pose estimation
	MaxFrames           *int     `json:"max_frames,omitempty"`
	EstimatorWorkers    *int     `json:"estimator_workers,omitempty"`
	FrameQualityFilter  *bool    `json:"frame_quality_filter,omitempty"`
	MinVisibility       *float64 `json:"min_visibility,omitempty"`
	MinVisibleLandmarks *int     `json:"min_visible_landmarks,omitempty"`
	RunTimeout          *string  `json:"run_timeout,omitempty"` // duration string like "2m"; empty disables

	// Scaffold aggregation
	AggregationStrategy *string  `json:"aggregation_strategy,omitempty"`
	TrimFraction        *float64 `json:"trim_fraction,omitempty"`

	// Mesh synthesis and refinement
	SynthSmoothingIterations  *int     `json:"synth_smoothing_iterations,omitempty"`
	RefineSmoothingIterations *int     `json:"refine_smoothing_iterations,omitempty"`
	SmoothingLambda           *float64 `json:"smoothing_lambda,omitempty"`
	MergeTolerance            *float64 `json:"merge_tolerance,omitempty"`
	MaxHoleEdges              *int     `json:"max_hole_edges,omitempty"`

	// Calibration and measurement
	HeightProxyEpsilon *float64 `json:"height_proxy_epsilon,omitempty"`
	SliceTolerance     *float64 `json:"slice_tolerance,omitempty"`

	// Quality assessment
	QualityExcellentVertices *int     `json:"quality_excellent_vertices,omitempty"`
	QualityGoodVertices      *int     `json:"quality_good_vertices,omitempty"`
	QualityFairVertices      *int     `json:"quality_fair_vertices,omitempty"`
	MaxTiltDegrees           *float64 `json:"max_tilt_degrees,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxFrames != nil && *c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be non-negative, got %d", *c.MaxFrames)
	}
	if c.EstimatorWorkers != nil && *c.EstimatorWorkers < 1 {
		return fmt.Errorf("estimator_workers must be at least 1, got %d", *c.EstimatorWorkers)
	}
	if c.MinVisibility != nil && (*c.MinVisibility < 0 || *c.MinVisibility > 1) {
		return fmt.Errorf("min_visibility must be between 0 and 1, got %f", *c.MinVisibility)
	}
	if c.MinVisibleLandmarks != nil && *c.MinVisibleLandmarks < 0 {
		return fmt.Errorf("min_visible_landmarks must be non-negative, got %d", *c.MinVisibleLandmarks)
	}
	if c.RunTimeout != nil && *c.RunTimeout != "" {
		if _, err := time.ParseDuration(*c.RunTimeout); err != nil {
			return fmt.Errorf("invalid run_timeout '%s': %w", *c.RunTimeout, err)
		}
	}

	if c.AggregationStrategy != nil {
		switch *c.AggregationStrategy {
		case AggregationMean, AggregationTrimmedMean:
		default:
			return fmt.Errorf("aggregation_strategy must be %q or %q, got %q", AggregationMean, AggregationTrimmedMean, *c.AggregationStrategy)
		}
	}
	if c.TrimFraction != nil && (*c.TrimFraction < 0 || *c.TrimFraction >= 0.5) {
		return fmt.Errorf("trim_fraction must be in [0, 0.5), got %f", *c.TrimFraction)
	}

	for name, v := range map[string]*int{
		"synth_smoothing_iterations":  c.SynthSmoothingIterations,
		"refine_smoothing_iterations": c.RefineSmoothingIterations,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}
	if c.SmoothingLambda != nil && (*c.SmoothingLambda <= 0 || *c.SmoothingLambda > 1) {
		return fmt.Errorf("smoothing_lambda must be in (0, 1], got %f", *c.SmoothingLambda)
	}
	if c.MergeTolerance != nil && *c.MergeTolerance < 0 {
		return fmt.Errorf("merge_tolerance must be non-negative, got %f", *c.MergeTolerance)
	}
	if c.MaxHoleEdges != nil && *c.MaxHoleEdges < 0 {
		return fmt.Errorf("max_hole_edges must be non-negative, got %d", *c.MaxHoleEdges)
	}

	if c.HeightProxyEpsilon != nil && *c.HeightProxyEpsilon <= 0 {
		return fmt.Errorf("height_proxy_epsilon must be positive, got %f", *c.HeightProxyEpsilon)
	}
	if c.SliceTolerance != nil && *c.SliceTolerance <= 0 {
		return fmt.Errorf("slice_tolerance must be positive, got %f", *c.SliceTolerance)
	}

	excellent, good, fair := c.GetQualityExcellentVertices(), c.GetQualityGoodVertices(), c.GetQualityFairVertices()
	if fair < 0 || good < fair || excellent < good {
		return fmt.Errorf("quality vertex thresholds must satisfy 0 <= fair <= good <= excellent, got %d/%d/%d", fair, good, excellent)
	}
	if c.MaxTiltDegrees != nil && (*c.MaxTiltDegrees < 0 || *c.MaxTiltDegrees > 90) {
		return fmt.Errorf("max_tilt_degrees must be between 0 and 90, got %f", *c.MaxTiltDegrees)
	}

	return nil
}

// GetMaxFrames returns the max_frames value or the default.
func (c *TuningConfig) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 30
	}
	return *c.MaxFrames
}

// GetEstimatorWorkers returns the estimator_workers value or the default.
func (c *TuningConfig) GetEstimatorWorkers() int {
	if c.EstimatorWorkers == nil {
		return 4
	}
	return *c.EstimatorWorkers
}

// GetFrameQualityFilter returns the frame_quality_filter value or the default.
func (c *TuningConfig) GetFrameQualityFilter() bool {
	if c.FrameQualityFilter == nil {
		return false // default: every sampled frame reaches the estimator
	}
	return *c.FrameQualityFilter
}

// GetMinVisibility returns the min_visibility value or the default.
func (c *TuningConfig) GetMinVisibility() float64 {
	if c.MinVisibility == nil {
		return 0.5
	}
	return *c.MinVisibility
}

// GetMinVisibleLandmarks returns the min_visible_landmarks value or the default.
// Zero disables the per-frame visibility filter.
func (c *TuningConfig) GetMinVisibleLandmarks() int {
	if c.MinVisibleLandmarks == nil {
		return 0
	}
	return *c.MinVisibleLandmarks
}

// GetRunTimeout parses and returns the RunTimeout as a time.Duration.
// Zero means no timeout.
func (c *TuningConfig) GetRunTimeout() time.Duration {
	if c.RunTimeout == nil || *c.RunTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.RunTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetAggregationStrategy returns the aggregation_strategy value or the default.
func (c *TuningConfig) GetAggregationStrategy() string {
	if c.AggregationStrategy == nil {
		return AggregationMean
	}
	return *c.AggregationStrategy
}

// GetTrimFraction returns the trim_fraction value or the default.
func (c *TuningConfig) GetTrimFraction() float64 {
	if c.TrimFraction == nil {
		return 0.1
	}
	return *c.TrimFraction
}

// GetSynthSmoothingIterations returns the synth_smoothing_iterations value or the default.
func (c *TuningConfig) GetSynthSmoothingIterations() int {
	if c.SynthSmoothingIterations == nil {
		return 5
	}
	return *c.SynthSmoothingIterations
}

// GetRefineSmoothingIterations returns the refine_smoothing_iterations value or the default.
func (c *TuningConfig) GetRefineSmoothingIterations() int {
	if c.RefineSmoothingIterations == nil {
		return 3
	}
	return *c.RefineSmoothingIterations
}

// GetSmoothingLambda returns the smoothing_lambda value or the default.
func (c *TuningConfig) GetSmoothingLambda() float64 {
	if c.SmoothingLambda == nil {
		return 0.5
	}
	return *c.SmoothingLambda
}

// GetMergeTolerance returns the merge_tolerance value or the default.
func (c *TuningConfig) GetMergeTolerance() float64 {
	if c.MergeTolerance == nil {
		return 1e-5
	}
	return *c.MergeTolerance
}

// GetMaxHoleEdges returns the max_hole_edges value or the default.
func (c *TuningConfig) GetMaxHoleEdges() int {
	if c.MaxHoleEdges == nil {
		return 4
	}
	return *c.MaxHoleEdges
}

// GetHeightProxyEpsilon returns the height_proxy_epsilon value or the default.
func (c *TuningConfig) GetHeightProxyEpsilon() float64 {
	if c.HeightProxyEpsilon == nil {
		return 1e-6
	}
	return *c.HeightProxyEpsilon
}

// GetSliceTolerance returns the slice_tolerance value or the default.
func (c *TuningConfig) GetSliceTolerance() float64 {
	if c.SliceTolerance == nil {
		return 0.02
	}
	return *c.SliceTolerance
}

// GetQualityExcellentVertices returns the quality_excellent_vertices value or the default.
func (c *TuningConfig) GetQualityExcellentVertices() int {
	if c.QualityExcellentVertices == nil {
		return 500
	}
	return *c.QualityExcellentVertices
}

// GetQualityGoodVertices returns the quality_good_vertices value or the default.
func (c *TuningConfig) GetQualityGoodVertices() int {
	if c.QualityGoodVertices == nil {
		return 200
	}
	return *c.QualityGoodVertices
}

// GetQualityFairVertices returns the quality_fair_vertices value or the default.
func (c *TuningConfig) GetQualityFairVertices() int {
	if c.QualityFairVertices == nil {
		return 100
	}
	return *c.QualityFairVertices
}

// GetMaxTiltDegrees returns the max_tilt_degrees value or the default.
func (c *TuningConfig) GetMaxTiltDegrees() float64 {
	if c.MaxTiltDegrees == nil {
		return 15
	}
	return *c.MaxTiltDegrees
}
