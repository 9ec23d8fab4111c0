package grid

import (
	"fmt"
	"math"
	"sort"
)

// Partition groups the pixels of a slope-unit label grid by unit.
//
// Units are addressed by position 0..Len()-1 in ascending label order;
// ID(i) gives the label at a position and Position(label) the reverse.
// Pixels with label <= 0, NaN or the label grid's NoData value are
// background and belong to no unit.
type Partition struct {
	Rows      int
	Cols      int
	Transform Transform
	CRS       string

	ids     []int64
	pos     map[int64]int
	offsets []int // unit i owns members[offsets[i]:offsets[i+1]]
	members []int // pixel offsets grouped by unit
}

// MaxLabel is the largest accepted unit label.
const MaxLabel = math.MaxInt32

// MaxDenseUnits bounds the unit set a dense partition may allocate.
const MaxDenseUnits = 1 << 24

// NewPartition builds a Partition in two passes over the label grid.
//
// With dense set, the unit set is every label in 1..max(label) even if some
// of those labels own no pixels; those units have a count of zero. Without
// it only labels that actually occur are units.
func NewPartition(labels *Grid, dense bool) (*Partition, error) {
	if labels == nil {
		return nil, fmt.Errorf("nil label grid")
	}
	if len(labels.Data) != labels.Rows*labels.Cols {
		return nil, fmt.Errorf("label grid has %d samples, want %d", len(labels.Data), labels.Rows*labels.Cols)
	}

	counts := make(map[int64]int)
	var maxLabel int64
	for i, v := range labels.Data {
		if labels.IsNoData(v) || v <= 0 {
			continue
		}
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			r, c := i/labels.Cols, i%labels.Cols
			return nil, fmt.Errorf("label grid holds non-integer value %g at row %d col %d", v, r, c)
		}
		if v > MaxLabel {
			r, c := i/labels.Cols, i%labels.Cols
			return nil, fmt.Errorf("label %g at row %d col %d exceeds %d", v, r, c, MaxLabel)
		}
		l := int64(v)
		counts[l]++
		if l > maxLabel {
			maxLabel = l
		}
	}

	var ids []int64
	if dense {
		if maxLabel > MaxDenseUnits {
			return nil, fmt.Errorf("dense labels: max label %d exceeds %d units", maxLabel, MaxDenseUnits)
		}
		ids = make([]int64, maxLabel)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
	} else {
		ids = make([]int64, 0, len(counts))
		for l := range counts {
			ids = append(ids, l)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	p := &Partition{
		Rows:      labels.Rows,
		Cols:      labels.Cols,
		Transform: labels.Transform,
		CRS:       labels.CRS,
		ids:       ids,
		pos:       make(map[int64]int, len(ids)),
		offsets:   make([]int, len(ids)+1),
	}
	for i, l := range ids {
		p.pos[l] = i
		p.offsets[i+1] = p.offsets[i] + counts[l]
	}

	p.members = make([]int, p.offsets[len(ids)])
	next := make([]int, len(ids))
	copy(next, p.offsets[:len(ids)])
	for i, v := range labels.Data {
		if labels.IsNoData(v) || v <= 0 {
			continue
		}
		u := p.pos[int64(v)]
		p.members[next[u]] = i
		next[u]++
	}
	return p, nil
}

// Len is the number of units.
func (p *Partition) Len() int { return len(p.ids) }

// IDs returns the unit labels in ascending order. The slice is shared and
// must not be modified.
func (p *Partition) IDs() []int64 { return p.ids }

// ID returns the label of the unit at position i.
func (p *Partition) ID(i int) int64 { return p.ids[i] }

// Position returns the position of the unit with the given label.
func (p *Partition) Position(label int64) (int, bool) {
	i, ok := p.pos[label]
	return i, ok
}

// Members returns the pixel offsets belonging to the unit at position i.
// The slice is shared and must not be modified.
func (p *Partition) Members(i int) []int {
	return p.members[p.offsets[i]:p.offsets[i+1]]
}

// Count is the number of pixels of the unit at position i.
func (p *Partition) Count(i int) int { return p.offsets[i+1] - p.offsets[i] }

// Counts returns the per-unit pixel counts in position order.
func (p *Partition) Counts() []float64 {
	out := make([]float64, len(p.ids))
	for i := range out {
		out[i] = float64(p.Count(i))
	}
	return out
}

// Labelled is the number of non-background pixels.
func (p *Partition) Labelled() int { return len(p.members) }

// MaxCount is the largest unit size.
func (p *Partition) MaxCount() int {
	m := 0
	for i := range p.ids {
		if c := p.Count(i); c > m {
			m = c
		}
	}
	return m
}

// Check verifies that g is aligned with the label grid this partition was
// built from.
func (p *Partition) Check(g *Grid, name string) error {
	if g == nil {
		return fmt.Errorf("grid %q: nil grid", name)
	}
	if err := checkShape(p.Rows, p.Cols, g, name); err != nil {
		return err
	}
	return checkTransform(p.Transform, g, name)
}

// Broadcast paints every pixel of unit i with values[i]. Background pixels
// receive background. The result shares the partition's georeferencing.
func (p *Partition) Broadcast(values []float64, background float64) (*Grid, error) {
	if len(values) != len(p.ids) {
		return nil, fmt.Errorf("broadcast: %d values for %d units", len(values), len(p.ids))
	}
	g := New(p.Rows, p.Cols, Float64, p.Transform, p.CRS)
	for i := range g.Data {
		g.Data[i] = background
	}
	g.SetNoData(background)
	for i, v := range values {
		for _, px := range p.Members(i) {
			g.Data[px] = v
		}
	}
	return g, nil
}
