// Package pipeline runs one video-to-measurements computation.
//
// It sequences frame extraction, pose estimation, scaffold aggregation,
// mesh synthesis and refinement, calibration, measurement and quality
// assessment. Each call to Run owns its scaffold, mesh and measurement
// set; nothing is shared between runs. The pipeline does not own domain
// logic; it delegates to the stage packages and records how far a run got.
package pipeline
