// Package zonal reduces a value grid to one scalar per slope unit.
package zonal

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic is a reduction over the multiset of values inside one unit.
type Statistic int

const (
	Mean Statistic = iota
	Variance
	Min
	Max
	Mode
	Sum
	Count
)

var statisticNames = [...]string{
	Mean:     "mean",
	Variance: "var",
	Min:      "min",
	Max:      "max",
	Mode:     "mode",
	Sum:      "sum",
	Count:    "count",
}

func (s Statistic) String() string {
	if s < 0 || int(s) >= len(statisticNames) {
		return fmt.Sprintf("Statistic(%d)", int(s))
	}
	return statisticNames[s]
}

// ParseStatistic accepts the names produced by String, plus "variance".
func ParseStatistic(name string) (Statistic, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "variance" {
		return Variance, nil
	}
	for i, s := range statisticNames {
		if s == n {
			return Statistic(i), nil
		}
	}
	return 0, fmt.Errorf("unknown statistic %q", name)
}

// Apply reduces vals under s. An empty multiset reduces to 0. vals is not
// modified.
//
// Mean and Variance are population statistics. Mode returns the most
// frequent value; ties go to the lowest value.
func Apply(s Statistic, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	switch s {
	case Mean:
		return stat.Mean(vals, nil)
	case Variance:
		_, v := stat.PopMeanVariance(vals, nil)
		return v
	case Min:
		return floats.Min(vals)
	case Max:
		return floats.Max(vals)
	case Mode:
		return mode(vals)
	case Sum:
		return floats.Sum(vals)
	case Count:
		return float64(len(vals))
	}
	panic(fmt.Sprintf("zonal: unknown statistic %d", int(s)))
}

func mode(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	best, bestN := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		// strictly greater keeps the lowest value on ties
		if j-i > bestN {
			best, bestN = sorted[i], j-i
		}
		i = j
	}
	return best
}
