package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestGrid(t *testing.T) {
	t.Parallel()

	g := Grid(t, 2, 3, grid.Float32, 1, 2, 3, 4, 5, 6)
	if g.Rows != 2 || g.Cols != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", g.Rows, g.Cols)
	}
	if g.At(1, 2) != 6 {
		t.Errorf("At(1,2) = %v, want 6", g.At(1, 2))
	}
	// pixel (0,0) centre sits at (0.5, rows-0.5)
	if p := g.Transform.XY(0, 0); p[0] != 0.5 || p[1] != 1.5 {
		t.Errorf("XY(0,0) = %v, want [0.5 1.5]", p)
	}
	if g.CRS != TestCRS {
		t.Errorf("CRS = %q", g.CRS)
	}
}

func TestWriteRegionRoundTrip(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	r := WriteRegion(t, fsys, "/data", "r1", FourByFour("r1"))

	if r.Dir != filepath.Join("/data", "r1") {
		t.Errorf("Dir = %q", r.Dir)
	}
	for _, layer := range []string{"slopeunits", "inventory", "region", "slope", "lithology"} {
		g, err := grid.ReadEHdr(fsys, filepath.Join(r.Dir, layer+grid.ExtBIL))
		AssertNoError(t, err)
		want := r.Grids[layer]
		for i := range want.Data {
			if g.Data[i] != want.Data[i] {
				t.Fatalf("%s[%d] = %v, want %v", layer, i, g.Data[i], want.Data[i])
			}
		}
		if g.CRS != TestCRS {
			t.Errorf("%s CRS = %q", layer, g.CRS)
		}
	}
	if r.Grids["slopeunits"].Type != grid.Int32 || r.Grids["slope"].Type != grid.Float32 {
		t.Error("unexpected fixture data types")
	}
}
