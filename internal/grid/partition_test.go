package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockLabels is the 4x4 two-unit layout: label 1 in the top-left 2x2
// block, label 2 in the bottom-right 2x2 block, background elsewhere.
func blockLabels() *Grid {
	g, _ := FromSlice(4, 4, []float64{
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 2, 2,
		0, 0, 2, 2,
	}, UInt32, Identity(), "")
	return g
}

func TestNewPartitionGroupsPixels(t *testing.T) {
	t.Parallel()

	p, err := NewPartition(blockLabels(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []int64{1, 2}, p.IDs())
	assert.Equal(t, []int{0, 1, 4, 5}, p.Members(0))
	assert.Equal(t, []int{10, 11, 14, 15}, p.Members(1))
	assert.Equal(t, []float64{4, 4}, p.Counts())
	assert.Equal(t, 8, p.Labelled())
	assert.Equal(t, 4, p.MaxCount())

	pos, ok := p.Position(2)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = p.Position(3)
	assert.False(t, ok)
}

func TestNewPartitionNonContiguousLabels(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(2, 3, []float64{
		7, 7, 0,
		42, 7, 3,
	}, UInt32, Identity(), "")

	p, err := NewPartition(labels, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 42}, p.IDs())
	assert.Equal(t, []float64{1, 3, 1}, p.Counts())

	pos, ok := p.Position(42)
	require.True(t, ok)
	assert.Equal(t, []int{3}, p.Members(pos))
}

func TestNewPartitionDenseKeepsGaps(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(1, 4, []float64{1, 3, 3, 0}, UInt32, Identity(), "")

	p, err := NewPartition(labels, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, p.IDs())
	assert.Equal(t, []float64{1, 0, 2}, p.Counts())
	assert.Empty(t, p.Members(1))
}

func TestNewPartitionBackground(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(1, 5, []float64{-1, 0, 65535, 2, 2}, UInt16, Identity(), "")
	labels.SetNoData(65535)

	p, err := NewPartition(labels, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, p.IDs())
	assert.Equal(t, 2, p.Labelled())
}

func TestNewPartitionRejectsFractionalLabels(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(1, 2, []float64{1, 1.5}, Float32, Identity(), "")
	_, err := NewPartition(labels, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 col 1")
}

func TestNewPartitionRejectsOutOfRangeLabels(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{math.Inf(1), float64(MaxLabel) + 1, 1e300} {
		labels, _ := FromSlice(1, 2, []float64{v, 1}, Float32, Identity(), "")
		for _, dense := range []bool{false, true} {
			p, err := NewPartition(labels, dense)
			require.Error(t, err, "label %g", v)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), "row 0 col 0")
		}
	}
}

func TestNewPartitionNegativeInfinityIsBackground(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(1, 2, []float64{math.Inf(-1), 1}, Float32, Identity(), "")
	p, err := NewPartition(labels, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, p.IDs())
}

func TestNewPartitionDenseRangeIsBounded(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(1, 2, []float64{MaxDenseUnits + 1, 1}, Int32, Identity(), "")
	_, err := NewPartition(labels, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dense labels")

	p, err := NewPartition(labels, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, MaxDenseUnits + 1}, p.IDs())
}

func TestNewPartitionAllBackground(t *testing.T) {
	t.Parallel()

	labels := New(3, 3, UInt32, Identity(), "")
	for _, dense := range []bool{false, true} {
		p, err := NewPartition(labels, dense)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Len())
		assert.Empty(t, p.Counts())
		assert.Equal(t, 0, p.MaxCount())
	}
}

func TestPartitionCountSumEqualsLabelledPixels(t *testing.T) {
	t.Parallel()

	labels, _ := FromSlice(3, 4, []float64{
		5, 5, 0, 9,
		0, 2, 2, 9,
		9, 9, 0, 0,
	}, UInt32, Identity(), "")
	p, err := NewPartition(labels, false)
	require.NoError(t, err)

	var sum float64
	for _, c := range p.Counts() {
		sum += c
	}
	assert.Equal(t, float64(8), sum)
	assert.Equal(t, 8, p.Labelled())
}

func TestPartitionCheck(t *testing.T) {
	t.Parallel()

	p, err := NewPartition(blockLabels(), false)
	require.NoError(t, err)

	assert.NoError(t, p.Check(New(4, 4, Float32, Identity(), ""), "slope"))
	assert.Error(t, p.Check(New(4, 3, Float32, Identity(), ""), "slope"))
	assert.Error(t, p.Check(New(4, 4, Float32, NorthUp(0, 4, 1, 1), ""), "slope"))
	assert.Error(t, p.Check(nil, "slope"))
}

func TestPartitionBroadcast(t *testing.T) {
	t.Parallel()

	p, err := NewPartition(blockLabels(), false)
	require.NoError(t, err)

	img, err := p.Broadcast([]float64{5, 10}, -9999)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		5, 5, -9999, -9999,
		5, 5, -9999, -9999,
		-9999, -9999, 10, 10,
		-9999, -9999, 10, 10,
	}, img.Data)
	require.NotNil(t, img.NoData)
	assert.Equal(t, -9999.0, *img.NoData)

	_, err = p.Broadcast([]float64{1}, 0)
	assert.Error(t, err)
}
