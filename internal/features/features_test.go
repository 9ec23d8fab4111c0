package features

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/zonal"
)

func g4(t *testing.T, data ...float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromSlice(4, 4, data, grid.Float32, grid.Identity(), "")
	require.NoError(t, err)
	return g
}

func blockPartition(t *testing.T) *grid.Partition {
	t.Helper()
	p, err := grid.NewPartition(g4(t,
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 2, 2,
		0, 0, 2, 2,
	), false)
	require.NoError(t, err)
	return p
}

func TestColumnNamesPolicy(t *testing.T) {
	t.Parallel()

	descs := []Descriptor{
		{Name: "slope", Kind: Continuous, Extreme: true},
		{Name: "aspect", Kind: Continuous},
		{Name: "lithology", Kind: Categorical},
		{Name: "PGA", Kind: Continuous},
	}
	names, err := ColumnNames(descs)
	require.NoError(t, err)

	want := []string{
		"slope_mean", "slope_var", "slope_min", "slope_max",
		"aspect_mean", "aspect_var",
		"lithology",
		"PGA_mean", "PGA_var",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("column names mismatch (-want +got):\n%s", diff)
	}

	again, err := ColumnNames(descs)
	require.NoError(t, err)
	assert.Equal(t, names, again)
}

func TestColumnNamesRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := ColumnNames([]Descriptor{
		{Name: "slope", Kind: Continuous},
		{Name: "slope", Kind: Continuous},
	})
	assert.True(t, errors.Is(err, ErrDuplicateColumn))

	// A categorical named like a derived column collides too.
	_, err = ColumnNames([]Descriptor{
		{Name: "relief", Kind: Continuous},
		{Name: "relief_mean", Kind: Categorical},
	})
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = ColumnNames([]Descriptor{{Name: " "}})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	descs := Describe(
		[]string{"slope", "soil", "drainage_area", "MAP"},
		[]string{"soil", "slope_missing"},
		DefaultExtremeFeatures,
	)
	assert.Equal(t, []Descriptor{
		{Name: "slope", Kind: Continuous, Extreme: true},
		{Name: "soil", Kind: Categorical},
		{Name: "drainage_area", Kind: Continuous, Extreme: true},
		{Name: "MAP", Kind: Continuous},
	}, descs)
}

func TestDescribeCategoricalWinsOverExtreme(t *testing.T) {
	t.Parallel()

	d := Describe([]string{"slope"}, []string{"slope"}, []string{"slope"})
	assert.Equal(t, Categorical, d[0].Kind)
	assert.False(t, d[0].Extreme)
	assert.Equal(t, []zonal.Statistic{zonal.Mode}, d[0].Statistics())
}

func TestBuildBlockScenario(t *testing.T) {
	t.Parallel()

	p := blockPartition(t)
	layers := []Layer{
		{Descriptor: Descriptor{Name: "slope", Kind: Continuous, Extreme: true}, Grid: g4(t,
			5, 5, 0, 0,
			5, 5, 0, 0,
			0, 0, 10, 10,
			0, 0, 10, 10,
		)},
		{Descriptor: Descriptor{Name: "soil", Kind: Categorical}, Grid: g4(t,
			1, 1, 0, 0,
			2.7, 3, 0, 0,
			0, 0, 4, 4,
			0, 0, 4, 9,
		)},
	}

	tab, err := Build(context.Background(), layers, p)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, tab.IDs)
	assert.Equal(t, []string{"slope_mean", "slope_var", "slope_min", "slope_max", "soil"}, tab.Names())
	assert.Equal(t, [][]float64{
		{5, 0, 5, 5, 1},
		{10, 0, 10, 10, 4},
	}, tab.Matrix())

	soil, ok := tab.Column("soil")
	require.True(t, ok)
	assert.True(t, soil.Integer)
	assert.Equal(t, zonal.Mode, soil.Statistic)
	assert.Equal(t, "soil", soil.Feature)

	slopeVar, ok := tab.Column("slope_var")
	require.True(t, ok)
	assert.False(t, slopeVar.Integer)
	assert.Equal(t, []int{4, 4}, slopeVar.Support)

	_, ok = tab.Column("soil_mean")
	assert.False(t, ok)
}

func TestBuildTruncatesCategoricalCodes(t *testing.T) {
	t.Parallel()

	labels, _ := grid.FromSlice(1, 3, []float64{1, 1, 1}, grid.UInt32, grid.Identity(), "")
	p, err := grid.NewPartition(labels, false)
	require.NoError(t, err)
	codes, _ := grid.FromSlice(1, 3, []float64{3.9, 3.9, 1}, grid.Float32, grid.Identity(), "")

	tab, err := Build(context.Background(), []Layer{{Descriptor: Descriptor{Name: "geology", Kind: Categorical}, Grid: codes}}, p)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, tab.Columns[0].Values)
}

func TestBuildTakesModeBeforeTruncating(t *testing.T) {
	t.Parallel()

	labels, _ := grid.FromSlice(1, 5, []float64{1, 1, 1, 1, 1}, grid.UInt32, grid.Identity(), "")
	p, err := grid.NewPartition(labels, false)
	require.NoError(t, err)
	codes, _ := grid.FromSlice(1, 5, []float64{3.9, 3.1, 3.5, 1, 1}, grid.Float32, grid.Identity(), "")

	tab, err := Build(context.Background(), []Layer{{Descriptor: Descriptor{Name: "geology", Kind: Categorical}, Grid: codes}}, p)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, tab.Columns[0].Values)
}

func TestBuildRejectsMisalignedLayerBeforeReducing(t *testing.T) {
	t.Parallel()

	p := blockPartition(t)
	bad, _ := grid.FromSlice(4, 4, make([]float64, 16), grid.Float32, grid.NorthUp(0, 4, 1, 1), "")
	_, err := Build(context.Background(), []Layer{
		{Descriptor: Descriptor{Name: "slope"}, Grid: g4(t, make([]float64, 16)...)},
		{Descriptor: Descriptor{Name: "PGA"}, Grid: bad},
	}, p)

	var ae *grid.AlignmentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "PGA", ae.Name)
}

func TestBuildHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, []Layer{{Descriptor: Descriptor{Name: "slope"}, Grid: g4(t, make([]float64, 16)...)}}, blockPartition(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildNoLayers(t *testing.T) {
	t.Parallel()

	tab, err := Build(context.Background(), nil, blockPartition(t))
	require.NoError(t, err)
	assert.Empty(t, tab.Columns)
	assert.Equal(t, [][]float64{{}, {}}, tab.Matrix())
}
