package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/db"
)

func newHistoryCommand() *cobra.Command {
	var (
		ledgerPath string
		limit      int
		runID      string
		region     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded batch runs, or the regions of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.NewDB(ledgerPath)
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			defer database.Close()
			store := db.NewLedgerStore(database)
			out := cmd.OutOrStdout()

			var v interface{}
			switch {
			case region != "":
				r, err := store.LastSuccess(region)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("region %s has no successful run", region)
				}
				v = r
				if !asJSON {
					fmt.Fprintf(out, "%s last succeeded in run %s at %s: kept %d/%d units, %s\n",
						r.Region, r.RunID, formatNs(r.RecordedAtNs), r.UnitsKept, r.UnitsTotal, r.ArtifactPath)
					return nil
				}
			case runID != "":
				results, err := store.RegionResults(runID)
				if err != nil {
					return err
				}
				v = results
				if !asJSON {
					tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "REGION\tSTATUS\tUNITS\tKEPT\tCOLUMNS\tDURATION\tDETAIL")
					for _, r := range results {
						detail := r.ArtifactPath
						if r.Error != "" {
							detail = r.Stage + ": " + r.Error
						}
						fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n", r.Region, r.Status, r.UnitsTotal, r.UnitsKept,
							r.ColumnCount, time.Duration(r.DurationNs).Round(time.Millisecond), detail)
					}
					return tw.Flush()
				}
			default:
				runs, err := store.ListRuns(limit)
				if err != nil {
					return err
				}
				v = runs
				if !asJSON {
					tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "RUN\tSTAGE\tSTATUS\tOK\tFAILED\tSTARTED\tOUTPUT")
					for _, r := range runs {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.RunID, r.Stage, r.Status,
							r.RegionsSucceeded, r.RegionsFailed, formatNs(r.StartedAtNs), r.OutputDir)
					}
					return tw.Flush()
				}
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}

	f := cmd.Flags()
	f.StringVar(&ledgerPath, "ledger", "", "SQLite run ledger path")
	f.IntVar(&limit, "limit", 20, "Number of runs to list")
	f.StringVar(&runID, "run", "", "Show the per-region results of this run")
	f.StringVar(&region, "region", "", "Show the last successful result of this region")
	f.BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("ledger")
	return cmd
}

func formatNs(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}
