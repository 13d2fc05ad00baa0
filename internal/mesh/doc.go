// Package mesh owns the approximate body surface: a triangle mesh built
// from the scaffold, its derived properties, and the cleanup passes that
// make it usable for slicing.
//
// Responsibilities: 3D convex hull and 2D Delaunay construction, Laplacian
// smoothing, topological repair (degenerate faces, vertex welding, hole
// filling), loop subdivision, and PLY/OBJ/STL export.
// Key types: Mesh, Stats, Synthesizer, Refiner, Construction.
//
// Dependency rule: mesh may depend on landmark and scaffold, never on
// measure, quality or pipeline.
package mesh
