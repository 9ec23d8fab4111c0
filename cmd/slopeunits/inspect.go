package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/grid"
)

// artifactSummary is what inspect reports about a dump or dataset.
type artifactSummary struct {
	Path       string     `json:"path"`
	Kind       string     `json:"kind"`
	Region     string     `json:"region"`
	Rows       int        `json:"rows,omitempty"`
	Columns    []string   `json:"columns"`
	Shape      [2]int     `json:"shape"`
	CRS        string     `json:"crs"`
	Resolution [2]float64 `json:"resolution"`
	Bounds     [4]float64 `json:"bounds"` // minx, miny, maxx, maxy
	MeanTarget *float64   `json:"mean_target,omitempty"`
}

func newInspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Summarise a region dump or filtered dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := summarise(fsutil.OSFileSystem{}, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "%s %s (region %s)\n", s.Kind, s.Path, s.Region)
			fmt.Fprintf(out, "  grid:    %dx%d  crs=%q  res=%g,%g\n", s.Shape[0], s.Shape[1], s.CRS, s.Resolution[0], s.Resolution[1])
			fmt.Fprintf(out, "  bounds:  %g %g %g %g\n", s.Bounds[0], s.Bounds[1], s.Bounds[2], s.Bounds[3])
			if s.Kind == "dataset" {
				fmt.Fprintf(out, "  units:   %d\n", s.Rows)
				if s.MeanTarget != nil {
					fmt.Fprintf(out, "  target:  mean %.4f\n", *s.MeanTarget)
				}
			}
			fmt.Fprintf(out, "  columns: %s\n", strings.Join(s.Columns, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func summarise(fsys fsutil.FileSystem, path string) (*artifactSummary, error) {
	s := &artifactSummary{Path: path}
	var (
		md    dataset.Metadata
		rows  int
		cols  int
		units *grid.Grid
	)

	if _, ok := dataset.RegionFromDump(filepath.Base(path)); ok {
		d, err := dataset.ReadRegion(fsys, path)
		if err != nil {
			return nil, err
		}
		s.Kind, s.Region, s.Columns = "region", d.Region, d.FeatureNames()
		md, units = d.Metadata, d.SlopeUnits
	} else {
		d, err := dataset.ReadFiltered(fsys, path)
		if err != nil {
			return nil, err
		}
		s.Kind, s.Region, s.Columns, s.Rows = "dataset", d.Region, d.Columns, d.Rows()
		md, units = d.Metadata, d.SlopeUnits
		if d.Rows() > 0 {
			mean := stat.Mean(d.Y, nil)
			s.MeanTarget = &mean
		}
	}

	if units != nil {
		rows, cols = units.Shape()
	}
	s.Shape = [2]int{rows, cols}
	s.CRS = md.CRS
	s.Resolution = md.Resolution
	s.Bounds = [4]float64{md.Bounds.Min[0], md.Bounds.Min[1], md.Bounds.Max[0], md.Bounds.Max[1]}
	return s, nil
}
