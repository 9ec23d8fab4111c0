package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformXYUsesPixelCentre(t *testing.T) {
	t.Parallel()

	tr := Identity()
	assert.Equal(t, orb.Point{0.5, 0.5}, tr.XY(0, 0))
	assert.Equal(t, orb.Point{3.5, 1.5}, tr.XY(1, 3))

	// 30 m north-up grid anchored at (500000, 4000000).
	nu := NorthUp(500000, 4000000, 30, 30)
	p := nu.XY(0, 0)
	assert.InDelta(t, 500015, p[0], 1e-9)
	assert.InDelta(t, 3999985, p[1], 1e-9)

	p = nu.XY(2, 1)
	assert.InDelta(t, 500045, p[0], 1e-9)
	assert.InDelta(t, 3999925, p[1], 1e-9)
}

func TestTransformEqual(t *testing.T) {
	t.Parallel()

	a := NorthUp(500000, 4000000, 30, 30)
	b := a
	b.C += 1e-6
	assert.True(t, a.Equal(b, 1e-9), "sub-tolerance drift on a large origin must compare equal")

	c := a
	c.A = 31
	assert.False(t, a.Equal(c, 1e-9))
}

func TestGridAccessors(t *testing.T) {
	t.Parallel()

	g := New(2, 3, Float32, Identity(), "EPSG:32648")
	g.Set(1, 2, 7)
	assert.Equal(t, 7.0, g.At(1, 2))
	assert.Equal(t, 5, g.Index(1, 2))
	assert.Equal(t, 6, g.Len())

	rows, cols := g.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
}

func TestFromSliceValidatesLength(t *testing.T) {
	t.Parallel()

	_, err := FromSlice(2, 2, []float64{1, 2, 3}, Float64, Identity(), "")
	require.Error(t, err)

	_, err = FromSlice(0, 2, nil, Float64, Identity(), "")
	require.Error(t, err)

	g, err := FromSlice(1, 2, []float64{1, 2}, Float64, Identity(), "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.At(0, 1))
}

func TestIsNoData(t *testing.T) {
	t.Parallel()

	g := New(1, 1, Float32, Identity(), "")
	assert.True(t, g.IsNoData(math.NaN()))
	assert.False(t, g.IsNoData(-9999))

	g.SetNoData(-9999)
	assert.True(t, g.IsNoData(-9999))
	assert.False(t, g.IsNoData(0))
}

func TestBoundsAndResolution(t *testing.T) {
	t.Parallel()

	g := New(4, 5, Float32, NorthUp(100, 200, 10, 10), "")
	b := g.Bounds()
	assert.Equal(t, orb.Point{100, 160}, b.Min)
	assert.Equal(t, orb.Point{150, 200}, b.Max)
	assert.Equal(t, [2]float64{10, -10}, g.Resolution())
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	g := New(1, 2, Float64, Identity(), "")
	g.SetNoData(-1)
	c := g.Clone()
	c.Data[0] = 9
	*c.NoData = 5

	assert.Equal(t, 0.0, g.Data[0])
	assert.Equal(t, -1.0, *g.NoData)
}

func TestOnes(t *testing.T) {
	t.Parallel()

	like := New(2, 2, Float32, NorthUp(0, 2, 1, 1), "EPSG:4326")
	o := Ones(like)
	assert.Equal(t, []float64{1, 1, 1, 1}, o.Data)
	assert.Equal(t, like.Transform, o.Transform)
	assert.Equal(t, "EPSG:4326", o.CRS)
}

func TestCheckAligned(t *testing.T) {
	t.Parallel()

	ref := New(3, 3, UInt32, NorthUp(0, 3, 1, 1), "")

	t.Run("aligned", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, CheckAligned(ref, New(3, 3, Float32, NorthUp(0, 3, 1, 1), ""), "slope"))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		t.Parallel()
		err := CheckAligned(ref, New(3, 4, Float32, NorthUp(0, 3, 1, 1), ""), "slope")
		var ae *AlignmentError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, "shape", ae.Property)
		assert.Equal(t, "slope", ae.Name)
		assert.Contains(t, err.Error(), "3x3")
	})

	t.Run("transform mismatch", func(t *testing.T) {
		t.Parallel()
		err := CheckAligned(ref, New(3, 3, Float32, NorthUp(1, 3, 1, 1), ""), "PGA")
		var ae *AlignmentError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, "transform", ae.Property)
	})

	t.Run("nil grid", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, CheckAligned(ref, nil, "x"))
	})
}

func TestDataTypeProperties(t *testing.T) {
	t.Parallel()

	assert.True(t, UInt32.IsInteger())
	assert.False(t, Float32.IsInteger())
	assert.Equal(t, 8, UInt8.Bits())
	assert.Equal(t, 16, Int16.Bits())
	assert.Equal(t, 32, Float32.Bits())
	assert.Equal(t, 64, Float64.Bits())
	assert.Equal(t, "uint16", UInt16.String())
}
