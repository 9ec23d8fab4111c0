package zonal

import (
	"fmt"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

// BroadcastNoData fills background pixels of a broadcast image.
const BroadcastNoData = -9999.0

// Table holds one statistic for every unit of a partition, in the
// partition's ascending label order.
type Table struct {
	Statistic Statistic
	IDs       []int64
	Values    []float64
	// Support is the number of non-NoData values each entry was computed
	// from. A zero here means the matching Value is a fill, not a
	// measurement.
	Support []int
}

// Len is the number of units.
func (t *Table) Len() int { return len(t.IDs) }

// Value looks up the statistic for a unit label.
func (t *Table) Value(id int64) (float64, bool) {
	for i, v := range t.IDs {
		if v == id {
			return t.Values[i], true
		}
	}
	return 0, false
}

// Broadcast paints every pixel of each unit with that unit's value.
// Background pixels get BroadcastNoData.
func (t *Table) Broadcast(p *grid.Partition) (*grid.Grid, error) {
	if p.Len() != t.Len() {
		return nil, fmt.Errorf("table has %d units, partition has %d", t.Len(), p.Len())
	}
	return p.Broadcast(t.Values, BroadcastNoData)
}

// Reduce computes stat for every unit of p over the pixels of values.
func Reduce(values *grid.Grid, p *grid.Partition, stat Statistic) (*Table, error) {
	tables, err := ReduceMany(values, p, []Statistic{stat})
	if err != nil {
		return nil, err
	}
	return tables[0], nil
}

// ReduceMany computes several statistics while gathering each unit's
// values only once. Tables are returned in the order of stats.
//
// values must be aligned with the label grid p was built from. Pixels
// equal to the value grid's NoData (or NaN) are left out of the unit's
// multiset.
func ReduceMany(values *grid.Grid, p *grid.Partition, stats []Statistic) ([]*Table, error) {
	if err := p.Check(values, "values"); err != nil {
		return nil, err
	}

	n := p.Len()
	tables := make([]*Table, len(stats))
	support := make([]int, n)
	for i, s := range stats {
		tables[i] = &Table{
			Statistic: s,
			IDs:       p.IDs(),
			Values:    make([]float64, n),
			Support:   support,
		}
	}

	buf := make([]float64, 0, p.MaxCount())
	for u := 0; u < n; u++ {
		buf = buf[:0]
		for _, px := range p.Members(u) {
			v := values.Data[px]
			if values.IsNoData(v) {
				continue
			}
			buf = append(buf, v)
		}
		support[u] = len(buf)
		for i, s := range stats {
			tables[i].Values[u] = Apply(s, buf)
		}
	}
	return tables, nil
}
