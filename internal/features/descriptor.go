// Package features turns a stack of named value grids into the ordered
// per-unit statistic columns of the modelling table.
package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/zonal"
)

// ErrDuplicateColumn is returned when two features would produce the same
// column name.
var ErrDuplicateColumn = errors.New("duplicate feature column")

// Kind selects the statistic policy of a feature.
type Kind int

const (
	Continuous Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor names a feature and how it is summarised.
type Descriptor struct {
	Name    string
	Kind    Kind
	Extreme bool // continuous only: also emit min and max
}

// DefaultExtremeFeatures are the continuous features whose per-unit
// extremes are kept. Names absent from a dataset are simply ignored.
var DefaultExtremeFeatures = []string{
	"slope",
	"curv_mean",
	"curv_total",
	"curv_profile",
	"drainage_area",
}

// DefaultFeatureNames is the feature order used when a manifest does not
// specify one.
var DefaultFeatureNames = []string{
	"aspect",
	"curv_mean",
	"curv_planform",
	"curv_total",
	"curv_profile",
	"distance_to_active_fault",
	"distance_to_channel",
	"elevation",
	"MAP",
	"nee",
	"PGA",
	"relief",
	"slope",
	"soil_moisture_day_before",
	"silt",
	"clay",
	"sand",
}

// Describe builds descriptors for the given names. Names listed in
// categorical become Categorical; continuous names in extreme are flagged
// Extreme.
func Describe(names []string, categorical, extreme []string) []Descriptor {
	cat := toSet(categorical)
	ext := toSet(extreme)
	out := make([]Descriptor, len(names))
	for i, n := range names {
		d := Descriptor{Name: n, Kind: Continuous}
		if cat[n] {
			d.Kind = Categorical
		} else {
			d.Extreme = ext[n]
		}
		out[i] = d
	}
	return out
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Statistics is the policy table: the reductions computed for a feature,
// in column order.
func (d Descriptor) Statistics() []zonal.Statistic {
	switch {
	case d.Kind == Categorical:
		return []zonal.Statistic{zonal.Mode}
	case d.Extreme:
		return []zonal.Statistic{zonal.Mean, zonal.Variance, zonal.Min, zonal.Max}
	default:
		return []zonal.Statistic{zonal.Mean, zonal.Variance}
	}
}

// ColumnName derives the column name of one feature statistic. Mode
// columns carry the bare feature name.
func ColumnName(feature string, s zonal.Statistic) string {
	if s == zonal.Mode {
		return feature
	}
	return feature + "_" + s.String()
}

// ColumnNames lists every column the descriptors produce, in order, and
// rejects duplicates.
func ColumnNames(descs []Descriptor) ([]string, error) {
	var names []string
	seen := make(map[string]string)
	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("feature with empty name")
		}
		for _, s := range d.Statistics() {
			c := ColumnName(d.Name, s)
			if prev, ok := seen[c]; ok {
				return nil, fmt.Errorf("%w: %q from feature %q and %q", ErrDuplicateColumn, c, prev, d.Name)
			}
			seen[c] = d.Name
			names = append(names, c)
		}
	}
	return names, nil
}
