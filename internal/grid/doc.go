// Package grid owns the in-memory raster model used by the aggregation
// pipeline.
//
// Responsibilities: single-band grids with an affine transform and a
// coordinate-reference identifier, alignment checks between grids, the
// slope-unit Partition (label grid grouped by unit in a single pass), and
// the EHdr (.bil/.hdr/.prj) codec used to exchange grids with the terrain
// toolchain.
// Key types: Grid, Transform, Partition, AlignmentError.
//
// No statistics live here; see package zonal.
package grid
