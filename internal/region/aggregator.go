package region

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/centroid"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/monitoring"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/security"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/unitfilter"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/zonal"
)

// Aggregator turns one loaded region into its filtered dataset.
type Aggregator struct {
	MinUnitCount int
	DenseLabels  bool
}

// Result is the outcome of aggregating one region.
type Result struct {
	Dataset    *dataset.FilteredDataset
	UnitsTotal int

	// Unfiltered statistics, kept for diagnostics.
	Table     *features.Table
	Partition *grid.Partition
}

// Process computes the target, counts, feature table and centroids of ds,
// drops units below MinUnitCount and assembles the filtered dataset. ctx is
// checked between feature reductions.
func (a *Aggregator) Process(ctx context.Context, ds *dataset.RegionDataset) (*Result, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	p, err := grid.NewPartition(ds.SlopeUnits, a.DenseLabels)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", ds.Region, err)
	}

	target, err := zonal.Reduce(ds.Inventory, p, zonal.Mean)
	if err != nil {
		return nil, fmt.Errorf("region %s: target: %w", ds.Region, err)
	}
	counts, err := zonal.Reduce(grid.Ones(ds.SlopeUnits), p, zonal.Sum)
	if err != nil {
		return nil, fmt.Errorf("region %s: counts: %w", ds.Region, err)
	}

	table, err := features.Build(ctx, ds.Layers, p)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", ds.Region, err)
	}

	centroids, err := unitCentroids(centroid.Compute(p), p.IDs(), counts.Values)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", ds.Region, err)
	}

	kept, err := unitfilter.Filter(unitfilter.Units{
		Table:     table,
		Target:    target.Values,
		Counts:    counts.Values,
		IDs:       p.IDs(),
		Centroids: centroids,
	}, a.MinUnitCount)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", ds.Region, err)
	}

	integer := make([]bool, len(kept.Table.Columns))
	for i, c := range kept.Table.Columns {
		integer[i] = c.Integer
	}
	out := &dataset.FilteredDataset{
		Region:     ds.Region,
		Columns:    kept.Table.Names(),
		Integer:    integer,
		X:          kept.Table.Matrix(),
		Y:          kept.Target,
		Counts:     kept.Counts,
		KeptIDs:    kept.IDs,
		Centroids:  kept.Centroids,
		SlopeUnits: ds.SlopeUnits,
		Metadata:   ds.Metadata,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	monitoring.Logf("[Aggregator] region=%s units=%d kept=%d columns=%d min_unit_count=%d",
		ds.Region, p.Len(), out.Rows(), len(out.Columns), a.MinUnitCount)
	return &Result{Dataset: out, UnitsTotal: p.Len(), Table: table, Partition: p}, nil
}

// unitCentroids lines the centroid set up with ids. Units without pixels
// have no centroid and get the zero point; the filter always drops them.
func unitCentroids(set *centroid.Set, ids []int64, counts []float64) ([]orb.Point, error) {
	out := make([]orb.Point, len(ids))
	for i, id := range ids {
		pt, ok := set.Point(id)
		if !ok && counts[i] > 0 {
			return nil, fmt.Errorf("unit %d has %g pixels but no centroid", id, counts[i])
		}
		out[i] = pt
	}
	return out, nil
}

// WriteDiagnostics paints every statistic column of res back onto the
// partition and stores it as dir/<column>.bil. Background pixels hold
// zonal.BroadcastNoData.
func WriteDiagnostics(fsys fsutil.FileSystem, dir string, res *Result) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create diagnostics dir: %w", err)
	}
	for _, col := range res.Table.Columns {
		g, err := res.Partition.Broadcast(col.Values, zonal.BroadcastNoData)
		if err != nil {
			return fmt.Errorf("broadcast %s: %w", col.Name, err)
		}
		path, err := security.JoinWithin(dir, security.SanitizeFilename(col.Name)+grid.ExtBIL)
		if err != nil {
			return err
		}
		if err := grid.WriteEHdr(fsys, path, g); err != nil {
			return fmt.Errorf("write diagnostic %s: %w", col.Name, err)
		}
	}
	return nil
}
