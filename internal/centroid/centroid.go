// Package centroid locates slope units in map coordinates.
package centroid

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

// Set maps unit labels to map-space centroids. IDs is ascending and
// Points[i] belongs to IDs[i].
type Set struct {
	IDs    []int64
	Points []orb.Point
}

// Len is the number of centroids.
func (s *Set) Len() int { return len(s.IDs) }

// Point returns the centroid of the unit with the given label.
func (s *Set) Point(id int64) (orb.Point, bool) {
	i := sort.Search(len(s.IDs), func(i int) bool { return s.IDs[i] >= id })
	if i < len(s.IDs) && s.IDs[i] == id {
		return s.Points[i], true
	}
	return orb.Point{}, false
}

// Compute averages the row and column index of every pixel of each unit and
// converts the mean position to map coordinates at the pixel centre. Units
// with no pixels get no entry.
func Compute(p *grid.Partition) *Set {
	s := &Set{
		IDs:    make([]int64, 0, p.Len()),
		Points: make([]orb.Point, 0, p.Len()),
	}
	for u := 0; u < p.Len(); u++ {
		members := p.Members(u)
		if len(members) == 0 {
			continue
		}
		var sumRow, sumCol float64
		for _, px := range members {
			sumRow += float64(px / p.Cols)
			sumCol += float64(px % p.Cols)
		}
		n := float64(len(members))
		s.IDs = append(s.IDs, p.ID(u))
		s.Points = append(s.Points, p.Transform.XY(sumRow/n, sumCol/n))
	}
	return s
}

// Align returns the centroid for each label in ids, in that order. ok is
// false for the first label that has no centroid.
func (s *Set) Align(ids []int64) (pts []orb.Point, missing int64, ok bool) {
	pts = make([]orb.Point, len(ids))
	for i, id := range ids {
		p, found := s.Point(id)
		if !found {
			return nil, id, false
		}
		pts[i] = p
	}
	return pts, 0, true
}
