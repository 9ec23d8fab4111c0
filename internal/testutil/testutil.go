// Package testutil provides shared test fixtures: small north-up grids and
// on-disk (or in-memory) region directories built from them.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

// TestCRS is the projection written next to fixture grids.
const TestCRS = "EPSG:32648"

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Transform is the fixture georeference: unit cells with the upper-left
// corner at (0, rows), so pixel (r, c) covers x in [c, c+1].
func Transform(rows int) grid.Transform {
	return grid.NorthUp(0, float64(rows), 1, 1)
}

// Grid builds a rows x cols grid from row-major values on the fixture
// transform.
func Grid(t testing.TB, rows, cols int, typ grid.DataType, data ...float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromSlice(rows, cols, append([]float64(nil), data...), typ, Transform(rows), TestCRS)
	AssertNoError(t, err)
	return g
}

// WriteGrid stores g as dir/name.bil.
func WriteGrid(t testing.TB, fsys fsutil.FileSystem, dir, name string, g *grid.Grid) {
	t.Helper()
	AssertNoError(t, fsys.MkdirAll(dir, 0755))
	AssertNoError(t, grid.WriteEHdr(fsys, filepath.Join(dir, name+grid.ExtBIL), g))
}

// Region is a fixture region: named grids plus the directory they were
// written to.
type Region struct {
	Name  string
	Dir   string
	Grids map[string]*grid.Grid
}

// FourByFour returns a 4x4 region with three slope units:
//
//	1 1 2 2
//	1 1 2 2
//	3 3 0 0
//	3 3 0 0
//
// unit 1 has slope 10, unit 2 has slope 20 and one landslide pixel, unit 3
// has slope 30 and two landslide pixels. lithology is categorical with unit
// 2 split 3/1 between classes 4 and 7.
func FourByFour(name string) map[string][]float64 {
	return map[string][]float64{
		"slopeunits": {
			1, 1, 2, 2,
			1, 1, 2, 2,
			3, 3, 0, 0,
			3, 3, 0, 0,
		},
		"inventory": {
			0, 0, 1, 0,
			0, 0, 0, 0,
			1, 0, 0, 0,
			1, 0, 0, 0,
		},
		"region": {
			1, 1, 1, 1,
			1, 1, 1, 1,
			1, 1, 1, 1,
			1, 1, 1, 1,
		},
		"slope": {
			10, 10, 20, 20,
			10, 10, 20, 20,
			30, 30, 5, 5,
			30, 30, 5, 5,
		},
		"lithology": {
			2, 2, 4, 4,
			2, 2, 4, 7,
			9, 9, 1, 1,
			9, 9, 1, 1,
		},
	}
}

// WriteRegion writes each named 4x4 layer of data under root/name. Label
// and categorical layers are stored as Int32, the rest as Float32.
func WriteRegion(t testing.TB, fsys fsutil.FileSystem, root, name string, data map[string][]float64) *Region {
	t.Helper()
	r := &Region{Name: name, Dir: filepath.Join(root, name), Grids: make(map[string]*grid.Grid)}
	for layer, vals := range data {
		typ := grid.Float32
		switch layer {
		case "slopeunits", "inventory", "region", "lithology":
			typ = grid.Int32
		}
		g := Grid(t, 4, 4, typ, vals...)
		WriteGrid(t, fsys, r.Dir, layer, g)
		r.Grids[layer] = g
	}
	return r
}
