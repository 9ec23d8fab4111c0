package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/config"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/db"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/manifest"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/metrics"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/monitoring"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/region"
)

type pipelineOptions struct {
	input        string
	output       string
	configPath   string
	manifestPath string
	keepDumps    bool
	cleanDumps   bool

	// Overrides; only applied when the flag was set.
	minUnitCount    int
	workers         int
	regionTimeout   string
	denseLabels     bool
	extremeFeatures []string
	compression     string
	writeCSV        bool
	diagnosticsDir  string
	ledgerPath      string
	metricsFile     string
}

func newPipelineCommand(use, short string) *cobra.Command {
	opts := &pipelineOptions{}
	mode, err := region.ParseMode(use)
	if err != nil {
		panic(err)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.pipelineConfig(cmd)
			if err != nil {
				return err
			}
			return runPipeline(cmd, mode, opts, cfg)
		},
	}

	opts.bindFlags(cmd, mode)
	return cmd
}

func (o *pipelineOptions) bindFlags(cmd *cobra.Command, mode region.Mode) {
	f := cmd.Flags()
	inputHelp := "Directory with one sub-directory of grids per region"
	if mode == region.ModeProcess {
		inputHelp = "Directory of region dumps written by aggregate"
	}
	f.StringVar(&o.input, "input", "", inputHelp)
	f.StringVar(&o.output, "output", "", "Directory for the written artifacts")
	f.StringVar(&o.configPath, "config", "", "Pipeline config JSON (e.g. "+config.DefaultConfigPath+")")
	if mode != region.ModeProcess {
		f.StringVar(&o.manifestPath, "manifest", "", "Feature manifest (.json, .yaml); defaults to the built-in feature list")
	}
	f.IntVar(&o.minUnitCount, "min-unit-count", 5, "Drop slope units with fewer pixels than this")
	f.IntVar(&o.workers, "workers", 0, "Regions processed in parallel (default: number of CPUs)")
	f.StringVar(&o.regionTimeout, "region-timeout", "10m", "Per-region deadline; 0 disables it")
	f.BoolVar(&o.denseLabels, "dense-labels", false, "Treat every label in 1..max as a unit, even if it owns no pixels")
	f.StringSliceVar(&o.extremeFeatures, "extreme-features", nil, "Continuous features that also get min and max columns")
	f.StringVar(&o.compression, "compression", "gzip", "Artifact compression: gzip or zstd")
	f.BoolVar(&o.writeCSV, "csv", false, "Also write <region>.csv next to each dataset")
	f.StringVar(&o.diagnosticsDir, "diagnostics-dir", "", "Write a broadcast grid per statistic column under this directory")
	f.StringVar(&o.ledgerPath, "ledger", "", "SQLite run ledger path")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	switch mode {
	case region.ModeRun:
		f.BoolVar(&o.keepDumps, "keep-dumps", false, "Also write <region>.region dumps")
	case region.ModeProcess:
		f.BoolVar(&o.cleanDumps, "clean-dumps", false, "Remove each dump once its dataset is written")
	}
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

// pipelineConfig loads the config file, if any, and layers the flags that
// were set on the command line over it.
func (o *pipelineOptions) pipelineConfig(cmd *cobra.Command) (*config.PipelineConfig, error) {
	base := config.EmptyPipelineConfig()
	if o.configPath != "" {
		var err error
		if base, err = config.LoadPipelineConfig(o.configPath); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	over := config.EmptyPipelineConfig()
	if f.Changed("min-unit-count") {
		over.MinUnitCount = &o.minUnitCount
	}
	if f.Changed("workers") {
		over.Workers = &o.workers
	}
	if f.Changed("region-timeout") {
		over.RegionTimeout = &o.regionTimeout
	}
	if f.Changed("dense-labels") {
		over.DenseLabels = &o.denseLabels
	}
	if f.Changed("extreme-features") {
		over.ExtremeFeatures = o.extremeFeatures
	}
	if f.Changed("compression") {
		over.Compression = &o.compression
	}
	if f.Changed("csv") {
		over.WriteCSV = &o.writeCSV
	}
	if f.Changed("diagnostics-dir") {
		over.DiagnosticsDir = &o.diagnosticsDir
	}
	if f.Changed("ledger") {
		over.LedgerPath = &o.ledgerPath
	}
	if f.Changed("metrics-file") {
		over.MetricsFile = &o.metricsFile
	}

	cfg := base.Merge(over)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, mode region.Mode, opts *pipelineOptions, cfg *config.PipelineConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsys := fsutil.OSFileSystem{}
	compression, err := dataset.ParseCompression(cfg.GetCompression())
	if err != nil {
		return err
	}

	b := &region.Batch{
		Mode:           mode,
		FS:             fsys,
		OutputDir:      opts.output,
		Aggregator:     &region.Aggregator{MinUnitCount: cfg.GetMinUnitCount(), DenseLabels: cfg.GetDenseLabels()},
		Workers:        cfg.GetWorkers(),
		RegionTimeout:  cfg.GetRegionTimeout(),
		Compression:    compression,
		WriteCSV:       cfg.GetWriteCSV(),
		DiagnosticsDir: cfg.GetDiagnosticsDir(),
		KeepDumps:      opts.keepDumps,
		CleanDumps:     opts.cleanDumps,
	}
	if mode == region.ModeProcess {
		b.InputDir = opts.input
	} else {
		m := manifest.Default()
		if opts.manifestPath != "" {
			if m, err = manifest.Load(fsys, opts.manifestPath); err != nil {
				return err
			}
		}
		if err := m.Validate(); err != nil {
			return err
		}
		b.Loader = &region.Loader{FS: fsys, Root: opts.input, Manifest: m, Extreme: cfg.GetExtremeFeatures()}
	}

	var collector *metrics.Collector
	if path := cfg.GetMetricsFile(); path != "" {
		collector = metrics.NewCollector()
		b.Observers = append(b.Observers, metricsObserver{collector})
	}

	var (
		ledger *db.LedgerStore
		run    *db.BatchRun
	)
	if path := cfg.GetLedgerPath(); path != "" {
		database, err := db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer database.Close()

		ledger = db.NewLedgerStore(database)
		run = &db.BatchRun{Stage: string(mode), InputDir: opts.input, OutputDir: opts.output, ParamsJSON: cfg.JSON()}
		if err := ledger.StartRun(run); err != nil {
			return err
		}
		b.Observers = append(b.Observers, &ledgerObserver{store: ledger, runID: run.RunID})
	}

	monitoring.Logf("[Pipeline] mode=%s input=%s output=%s config=%s", mode, opts.input, opts.output, cfg.JSON())
	report, runErr := b.Run(ctx)

	if ledger != nil {
		finished, err := ledger.FinishRun(run.RunID)
		if err != nil {
			monitoring.Logf("[Pipeline] failed to close ledger run %s: %v", run.RunID, err)
		} else {
			monitoring.Logf("[Pipeline] ledger run=%s status=%s", finished.RunID, finished.Status)
		}
	}
	if collector != nil {
		collector.BatchFinished(time.Now())
		if err := collector.WriteTextfile(cfg.GetMetricsFile()); err != nil {
			monitoring.Logf("[Pipeline] %v", err)
		}
	}

	if report == nil {
		return runErr
	}
	printReport(cmd, report)
	if runErr != nil {
		return runErr
	}
	return report.Err()
}

func printReport(cmd *cobra.Command, r *region.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "succeeded=%d failed=%d elapsed=%s\n", len(r.Succeeded), len(r.Failed), r.Duration.Round(time.Millisecond))
	for _, f := range r.Failed {
		fmt.Fprintf(out, "  FAILED %s (%s): %v\n", f.Region, f.Stage, f.Err)
	}
}

type metricsObserver struct {
	c *metrics.Collector
}

func (m metricsObserver) Observe(o region.Outcome) {
	if o.Err != nil {
		m.c.RegionFailed(string(o.Mode), o.Duration)
		return
	}
	m.c.RegionSucceeded(string(o.Mode), o.Duration, o.UnitsTotal, o.UnitsKept)
}

type ledgerObserver struct {
	store *db.LedgerStore
	runID string
}

func (l *ledgerObserver) Observe(o region.Outcome) {
	r := &db.RegionResult{
		RunID:        l.runID,
		Region:       o.Region,
		Status:       db.StatusOK,
		UnitsTotal:   o.UnitsTotal,
		UnitsKept:    o.UnitsKept,
		ColumnCount:  o.Columns,
		ArtifactPath: o.Artifact,
		DurationNs:   o.Duration.Nanoseconds(),
	}
	if o.Err != nil {
		r.Status = db.StatusFailed
		r.Stage = o.Step
		r.Error = o.Err.Error()
		r.ArtifactPath = ""
	}
	if err := l.store.RecordRegion(r); err != nil {
		monitoring.Logf("[Pipeline] failed to record region %s: %v", o.Region, err)
	}
}
