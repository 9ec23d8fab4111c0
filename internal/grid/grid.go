package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// DataType is the sample type a grid was stored with. Values are always held
// as float64 in memory; the type decides how they are written back out and
// whether the grid may be used as a label grid.
type DataType int

const (
	Float64 DataType = iota
	Float32
	Int16
	Int32
	UInt8
	UInt16
	UInt32
)

func (t DataType) String() string {
	switch t {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case UInt8:
		return "uint8"
	case UInt16:
		return "uint16"
	case UInt32:
		return "uint32"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// IsInteger reports whether samples of this type are integral.
func (t DataType) IsInteger() bool {
	return t != Float64 && t != Float32
}

// Bits returns the sample width in bits.
func (t DataType) Bits() int {
	switch t {
	case UInt8:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, UInt32, Float32:
		return 32
	default:
		return 64
	}
}

// Transform is an affine mapping from (col, row) pixel space to map
// coordinates, using the same coefficient names as rasterio/GDAL:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the transform that maps pixel space onto map space
// unchanged.
func Identity() Transform {
	return Transform{A: 1, E: 1}
}

// NorthUp returns the usual transform for a grid whose upper-left corner is
// at (originX, originY) with square-ish cells of size xres by yres.
func NorthUp(originX, originY, xres, yres float64) Transform {
	return Transform{A: xres, C: originX, E: -yres, F: originY}
}

// Apply maps a fractional (col, row) position to map coordinates.
func (t Transform) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// XY returns the map coordinate of the centre of the pixel at the
// (possibly fractional) row and column index.
func (t Transform) XY(row, col float64) orb.Point {
	x, y := t.Apply(col+0.5, row+0.5)
	return orb.Point{x, y}
}

// Equal compares two transforms coefficient by coefficient with a relative
// tolerance.
func (t Transform) Equal(o Transform, tol float64) bool {
	a := [6]float64{t.A, t.B, t.C, t.D, t.E, t.F}
	b := [6]float64{o.A, o.B, o.C, o.D, o.E, o.F}
	for i := range a {
		scale := math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		if math.Abs(a[i]-b[i]) > tol*scale {
			return false
		}
	}
	return true
}

func (t Transform) String() string {
	return fmt.Sprintf("|%g %g %g|%g %g %g|", t.A, t.B, t.C, t.D, t.E, t.F)
}

// Grid is a single-band 2-D raster held row-major in memory.
type Grid struct {
	Rows      int
	Cols      int
	Data      []float64
	Type      DataType
	Transform Transform
	CRS       string
	NoData    *float64
}

// New allocates a zero-filled grid.
func New(rows, cols int, typ DataType, tr Transform, crs string) *Grid {
	return &Grid{
		Rows:      rows,
		Cols:      cols,
		Data:      make([]float64, rows*cols),
		Type:      typ,
		Transform: tr,
		CRS:       crs,
	}
}

// FromSlice wraps data (row-major, len rows*cols) in a grid without copying.
func FromSlice(rows, cols int, data []float64, typ DataType, tr Transform, crs string) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid grid shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("grid data has %d samples, want %d (%dx%d)", len(data), rows*cols, rows, cols)
	}
	return &Grid{Rows: rows, Cols: cols, Data: data, Type: typ, Transform: tr, CRS: crs}, nil
}

// Len is the number of pixels.
func (g *Grid) Len() int { return g.Rows * g.Cols }

// Index converts (row, col) into an offset into Data.
func (g *Grid) Index(row, col int) int { return row*g.Cols + col }

// At returns the sample at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Data[g.Index(row, col)] }

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Data[g.Index(row, col)] = v }

// SetNoData records the grid's no-data marker.
func (g *Grid) SetNoData(v float64) {
	g.NoData = &v
}

// IsNoData reports whether v is this grid's missing-value marker. NaN is
// always treated as missing.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return g.NoData != nil && v == *g.NoData
}

// Shape returns (rows, cols).
func (g *Grid) Shape() (int, int) { return g.Rows, g.Cols }

// Resolution returns the (A, E) transform coefficients, i.e. the signed
// pixel width and height.
func (g *Grid) Resolution() [2]float64 {
	return [2]float64{g.Transform.A, g.Transform.E}
}

// Bounds returns the map-space bounding box of the grid's outer pixel
// edges.
func (g *Grid) Bounds() orb.Bound {
	cols, rows := float64(g.Cols), float64(g.Rows)
	var b orb.Bound
	for i, c := range [][2]float64{{0, 0}, {cols, 0}, {0, rows}, {cols, rows}} {
		x, y := g.Transform.Apply(c[0], c[1])
		if i == 0 {
			b = orb.Point{x, y}.Bound()
			continue
		}
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	if g.NoData != nil {
		nd := *g.NoData
		out.NoData = &nd
	}
	return &out
}

// Ones returns a grid with the same georeferencing as like and every pixel
// set to 1.
func Ones(like *Grid) *Grid {
	g := New(like.Rows, like.Cols, UInt8, like.Transform, like.CRS)
	for i := range g.Data {
		g.Data[i] = 1
	}
	return g
}
