// Package dataset defines the per-region records that flow through the
// pipeline and their on-disk encoding.
//
// A RegionDataset is the loaded, aligned input of one region. A
// FilteredDataset is the terminal artifact: the retained units' feature
// matrix with its target, counts, ids, centroids, partition grid and
// region metadata. Both are written as a versioned gob stream wrapped in
// gzip or zstd.
package dataset

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

// Metadata describes where a region sits on the map.
type Metadata struct {
	Bounds     orb.Bound
	Resolution [2]float64 // signed pixel width and height
	CRS        string
}

// MetadataFrom reads the metadata block from a boundary grid.
func MetadataFrom(g *grid.Grid) Metadata {
	return Metadata{
		Bounds:     g.Bounds(),
		Resolution: g.Resolution(),
		CRS:        g.CRS,
	}
}

// RegionDataset is the aligned input stack of one region.
type RegionDataset struct {
	Region     string
	Layers     []features.Layer
	Inventory  *grid.Grid
	SlopeUnits *grid.Grid
	Metadata   Metadata
}

// FeatureNames lists the layer names in stack order.
func (d *RegionDataset) FeatureNames() []string {
	out := make([]string, len(d.Layers))
	for i, l := range d.Layers {
		out[i] = l.Name
	}
	return out
}

// Validate checks that every grid is present and aligned with the slope
// unit grid.
func (d *RegionDataset) Validate() error {
	if d.SlopeUnits == nil {
		return fmt.Errorf("region %s: missing slope unit grid", d.Region)
	}
	if d.Inventory == nil {
		return fmt.Errorf("region %s: missing inventory grid", d.Region)
	}
	if err := grid.CheckAligned(d.SlopeUnits, d.Inventory, "inventory"); err != nil {
		return fmt.Errorf("region %s: %w", d.Region, err)
	}
	for _, l := range d.Layers {
		if err := grid.CheckAligned(d.SlopeUnits, l.Grid, l.Name); err != nil {
			return fmt.Errorf("region %s: %w", d.Region, err)
		}
	}
	return nil
}

// FilteredDataset is the persisted result for one region. Row i of X, Y,
// Counts, KeptIDs and Centroids all describe the same unit.
type FilteredDataset struct {
	Region     string
	Columns    []string
	Integer    []bool // per column: values are categorical codes
	X          [][]float64
	Y          []float64
	Counts     []float64
	KeptIDs    []int64
	Centroids  []orb.Point
	SlopeUnits *grid.Grid
	Metadata   Metadata
}

// Rows is the number of retained units.
func (d *FilteredDataset) Rows() int { return len(d.KeptIDs) }

// Validate checks that the per-unit vectors agree on length.
func (d *FilteredDataset) Validate() error {
	n := len(d.KeptIDs)
	if len(d.Y) != n || len(d.Counts) != n || len(d.Centroids) != n || len(d.X) != n {
		return fmt.Errorf("region %s: inconsistent rows: ids=%d X=%d y=%d counts=%d centroids=%d",
			d.Region, n, len(d.X), len(d.Y), len(d.Counts), len(d.Centroids))
	}
	if len(d.Integer) != len(d.Columns) {
		return fmt.Errorf("region %s: %d column flags for %d columns", d.Region, len(d.Integer), len(d.Columns))
	}
	for i, row := range d.X {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("region %s: row %d has %d values, want %d", d.Region, i, len(row), len(d.Columns))
		}
	}
	return nil
}

// ColumnIndex returns the position of a named column.
func (d *FilteredDataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
