package region

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/manifest"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/security"
)

// Loader reads region directories laid out as
//
//	<root>/<region>/<feature>.bil (+ .hdr, .prj)
//	<root>/<region>/slopeunits.bil
//	<root>/<region>/inventory.bil
//	<root>/<region>/region.bil
//
// with grid base names taken from the manifest.
type Loader struct {
	FS       fsutil.FileSystem
	Root     string
	Manifest *manifest.Manifest
	Extreme  []string
}

// Discover lists the region directories under Root, sorted by name.
// Hidden entries and plain files are skipped.
func (l *Loader) Discover() ([]string, error) {
	entries, err := l.FS.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions in %s: %w", l.Root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and alignment-checks every grid of one region.
func (l *Loader) Load(name string) (*dataset.RegionDataset, error) {
	if err := security.ValidateName("region", name); err != nil {
		return nil, err
	}
	dir, err := security.JoinWithin(l.Root, name)
	if err != nil {
		return nil, err
	}

	m := l.Manifest
	if m == nil {
		m = manifest.Default()
	}

	units, err := l.readGrid(name, dir, m.SlopeUnitsName())
	if err != nil {
		return nil, err
	}
	inventory, err := l.readGrid(name, dir, m.InventoryName())
	if err != nil {
		return nil, err
	}
	boundary, err := l.readGrid(name, dir, m.RegionName())
	if err != nil {
		return nil, err
	}

	descs := m.Descriptors(l.Extreme)
	layers := make([]features.Layer, 0, len(descs))
	for _, d := range descs {
		g, err := l.readGrid(name, dir, d.Name)
		if err != nil {
			return nil, err
		}
		layers = append(layers, features.Layer{Descriptor: d, Grid: g})
	}

	ds := &dataset.RegionDataset{
		Region:     name,
		Layers:     layers,
		Inventory:  inventory,
		SlopeUnits: units,
		Metadata:   dataset.MetadataFrom(boundary),
	}
	if err := grid.CheckAligned(units, boundary, m.RegionName()); err != nil {
		return nil, fmt.Errorf("region %s: %w", name, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (l *Loader) readGrid(region, dir, base string) (*grid.Grid, error) {
	if err := security.ValidateName("grid", base); err != nil {
		return nil, fmt.Errorf("region %s: %w", region, err)
	}
	path := filepath.Join(dir, base+grid.ExtBIL)
	hdr := filepath.Join(dir, base+grid.ExtHDR)
	if !l.FS.Exists(path) || !l.FS.Exists(hdr) {
		return nil, &MissingInputError{Region: region, Artifact: fmt.Sprintf("grid %q", base)}
	}
	g, err := grid.ReadEHdr(l.FS, path)
	if err != nil {
		return nil, fmt.Errorf("region %s: grid %q: %w", region, base, err)
	}
	return g, nil
}
