// Package landmark defines the anatomical landmark enumeration produced by
// the pose estimator and the per-frame observation types built on it.
//
// Responsibilities: the 33-point landmark table (stable integer ids with
// snake_case names), observation sets for one frame, and per-frame
// visibility screening.
// Key types: ID, Observation, Set, FrameQuality.
//
// Dependency rule: landmark is a leaf package. Geometry packages
// (scaffold, mesh, measure) depend on it, never the reverse.
package landmark
