package features

import (
	"context"
	"fmt"
	"math"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/zonal"
)

// Layer is one named value grid of a region's feature stack.
type Layer struct {
	Descriptor
	Grid *grid.Grid
}

// Column is one per-unit statistic.
type Column struct {
	Name      string
	Feature   string
	Statistic zonal.Statistic
	Integer   bool // categorical codes
	Values    []float64
	Support   []int
}

// Table is the full statistic matrix of a region, stored column-major.
// Every column has one value per entry of IDs.
type Table struct {
	IDs     []int64
	Columns []Column
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Rows is the number of units.
func (t *Table) Rows() int { return len(t.IDs) }

// Matrix returns the table row-per-unit.
func (t *Table) Matrix() [][]float64 {
	m := make([][]float64, len(t.IDs))
	for r := range m {
		row := make([]float64, len(t.Columns))
		for c := range t.Columns {
			row[c] = t.Columns[c].Values[r]
		}
		m[r] = row
	}
	return m
}

// Build reduces every layer over the partition and assembles the columns
// in layer order. All layers are alignment-checked before any reduction
// runs. ctx is checked between layers.
func Build(ctx context.Context, layers []Layer, p *grid.Partition) (*Table, error) {
	descs := make([]Descriptor, len(layers))
	for i, l := range layers {
		descs[i] = l.Descriptor
	}
	names, err := ColumnNames(descs)
	if err != nil {
		return nil, err
	}
	for _, l := range layers {
		if err := p.Check(l.Grid, l.Name); err != nil {
			return nil, err
		}
	}

	t := &Table{IDs: p.IDs(), Columns: make([]Column, 0, len(names))}
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("building %q: %w", l.Name, err)
		}
		stats := l.Statistics()
		tables, err := zonal.ReduceMany(l.Grid, p, stats)
		if err != nil {
			return nil, fmt.Errorf("reducing %q: %w", l.Name, err)
		}
		for i, tab := range tables {
			col := Column{
				Name:      names[len(t.Columns)],
				Feature:   l.Name,
				Statistic: stats[i],
				Values:    tab.Values,
				Support:   tab.Support,
			}
			if l.Kind == Categorical {
				col.Integer = true
				for j, v := range col.Values {
					col.Values[j] = math.Trunc(v)
				}
			}
			t.Columns = append(t.Columns, col)
		}
	}
	return t, nil
}
