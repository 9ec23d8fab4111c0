// Package unitfilter drops slope units with too few supporting pixels.
package unitfilter

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
)

// ErrLengthMismatch is returned when the per-unit inputs disagree on the
// number of units.
var ErrLengthMismatch = errors.New("per-unit inputs have different lengths")

// Units is the per-unit state of a region, all in the same unit order.
type Units struct {
	Table     *features.Table
	Target    []float64
	Counts    []float64
	IDs       []int64
	Centroids []orb.Point
}

// Len is the number of units.
func (u Units) Len() int { return len(u.IDs) }

func (u Units) check() error {
	n := len(u.IDs)
	lens := map[string]int{
		"target":    len(u.Target),
		"counts":    len(u.Counts),
		"centroids": len(u.Centroids),
	}
	if u.Table != nil {
		lens["table ids"] = len(u.Table.IDs)
		for _, c := range u.Table.Columns {
			lens["column "+c.Name] = len(c.Values)
		}
	}
	for name, l := range lens {
		if l != n {
			return fmt.Errorf("%w: %s has %d entries, ids has %d", ErrLengthMismatch, name, l, n)
		}
	}
	return nil
}

// Mask keeps units with count >= threshold. A unit without any pixels is
// never kept, even at threshold 0.
func Mask(counts []float64, threshold int) []bool {
	keep := make([]bool, len(counts))
	for i, c := range counts {
		keep[i] = c > 0 && c >= float64(threshold)
	}
	return keep
}

// Apply keeps the units selected by mask in every per-unit input. The
// result shares no slices with u. An all-false mask yields empty, non-nil
// slices.
func Apply(mask []bool, u Units) (Units, error) {
	if err := u.check(); err != nil {
		return Units{}, err
	}
	if len(mask) != u.Len() {
		return Units{}, fmt.Errorf("%w: mask has %d entries, ids has %d", ErrLengthMismatch, len(mask), u.Len())
	}

	kept := 0
	for _, k := range mask {
		if k {
			kept++
		}
	}

	out := Units{
		Target:    make([]float64, 0, kept),
		Counts:    make([]float64, 0, kept),
		IDs:       make([]int64, 0, kept),
		Centroids: make([]orb.Point, 0, kept),
	}
	for i, k := range mask {
		if !k {
			continue
		}
		out.Target = append(out.Target, u.Target[i])
		out.Counts = append(out.Counts, u.Counts[i])
		out.IDs = append(out.IDs, u.IDs[i])
		out.Centroids = append(out.Centroids, u.Centroids[i])
	}

	if u.Table != nil {
		out.Table = &features.Table{
			IDs:     out.IDs,
			Columns: make([]features.Column, len(u.Table.Columns)),
		}
		for c, col := range u.Table.Columns {
			nc := col
			nc.Values = filterFloats(mask, col.Values, kept)
			nc.Support = filterInts(mask, col.Support, kept)
			out.Table.Columns[c] = nc
		}
	}
	return out, nil
}

// Filter computes the mask for threshold and applies it.
func Filter(u Units, threshold int) (Units, error) {
	return Apply(Mask(u.Counts, threshold), u)
}

func filterFloats(mask []bool, in []float64, kept int) []float64 {
	out := make([]float64, 0, kept)
	for i, k := range mask {
		if k {
			out = append(out, in[i])
		}
	}
	return out
}

func filterInts(mask []bool, in []int, kept int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, 0, kept)
	for i, k := range mask {
		if k {
			out = append(out, in[i])
		}
	}
	return out
}
