package region

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/monitoring"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/security"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/timeutil"
)

// Mode selects which part of the pipeline a batch runs.
type Mode string

const (
	// ModeAggregate loads region directories and writes region dumps.
	ModeAggregate Mode = "aggregate"
	// ModeProcess reads region dumps and writes filtered datasets.
	ModeProcess Mode = "process"
	// ModeRun loads region directories and writes filtered datasets.
	ModeRun Mode = "run"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAggregate, ModeProcess, ModeRun:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Steps a region can fail in.
const (
	StepLoad        = "load"
	StepAggregate   = "aggregate"
	StepWrite       = "write"
	StepDiagnostics = "diagnostics"
)

// Outcome describes how one region went. Err is nil on success.
type Outcome struct {
	Region     string
	Mode       Mode
	Step       string // failing step
	Err        error
	UnitsTotal int
	UnitsKept  int
	Columns    int
	Artifact   string
	Duration   time.Duration
}

// Observer is told about every finished region. Calls are serialised.
type Observer interface {
	Observe(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

func (f ObserverFunc) Observe(o Outcome) { f(o) }

// Failure is a region that did not produce its artifact.
type Failure struct {
	Region string
	Stage  string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Region, f.Stage, f.Err)
}

// Report summarises a batch. Both lists are sorted by region.
type Report struct {
	Succeeded []string
	Failed    []Failure
	Duration  time.Duration
}

// Err joins the failures, or returns nil when every region succeeded.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return fmt.Errorf("%d of %d regions failed: %w",
		len(r.Failed), len(r.Failed)+len(r.Succeeded), errors.Join(errs...))
}

// Batch runs one mode over every region of an input directory. Regions are
// independent: a failing region is reported and the rest carry on.
type Batch struct {
	Mode       Mode
	FS         fsutil.FileSystem
	Loader     *Loader // ModeAggregate, ModeRun
	InputDir   string  // ModeProcess: directory of region dumps
	OutputDir  string
	Aggregator *Aggregator

	Workers        int
	RegionTimeout  time.Duration // 0 disables the deadline
	Compression    dataset.Compression
	WriteCSV       bool
	DiagnosticsDir string
	KeepDumps      bool // ModeRun: also write region dumps
	CleanDumps     bool // ModeProcess: remove a dump once its dataset is written

	Observers []Observer
	Clock     timeutil.Clock

	mu sync.Mutex
}

// Regions lists the regions the batch will visit, sorted.
func (b *Batch) Regions() ([]string, error) {
	if b.Mode != ModeProcess {
		if b.Loader == nil {
			return nil, fmt.Errorf("%s: no loader configured", b.Mode)
		}
		return b.Loader.Discover()
	}
	entries, err := b.FS.ReadDir(b.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list dumps in %s: %w", b.InputDir, err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := dataset.RegionFromDump(e.Name()); ok && !seen[name] && !strings.HasPrefix(name, ".") {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run processes every region with at most Workers in flight. The returned
// error is only set when the batch could not start or ctx was cancelled;
// per-region failures are in the report.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	if b.Clock == nil {
		b.Clock = timeutil.RealClock{}
	}
	if b.Compression == "" {
		b.Compression = dataset.Gzip
	}
	if b.Mode != ModeAggregate && b.Aggregator == nil {
		return nil, fmt.Errorf("%s: no aggregator configured", b.Mode)
	}
	sw := timeutil.StartStopwatch(b.Clock)

	regions, err := b.Regions()
	if err != nil {
		return nil, err
	}
	if err := b.FS.MkdirAll(b.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	monitoring.Logf("[Batch] mode=%s regions=%d workers=%d timeout=%s", b.Mode, len(regions), workers, b.RegionTimeout)

	report := &Report{}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, name := range regions {
		g.Go(func() error {
			o := b.runRegion(ctx, name)
			b.finish(report, o)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Region < report.Failed[j].Region })
	report.Duration = sw.Elapsed()

	monitoring.Logf("[Batch] mode=%s done: succeeded=%d failed=%d elapsed=%s",
		b.Mode, len(report.Succeeded), len(report.Failed), report.Duration)
	return report, ctx.Err()
}

func (b *Batch) finish(report *Report, o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Err != nil {
		report.Failed = append(report.Failed, Failure{Region: o.Region, Stage: o.Step, Err: o.Err})
		monitoring.Logf("[Batch] region=%s failed at %s: %v", o.Region, o.Step, o.Err)
	} else {
		report.Succeeded = append(report.Succeeded, o.Region)
	}
	for _, obs := range b.Observers {
		obs.Observe(o)
	}
}

func (b *Batch) runRegion(parent context.Context, name string) (o Outcome) {
	sw := timeutil.StartStopwatch(b.Clock)
	o = Outcome{Region: name, Mode: b.Mode}
	step := StepLoad
	defer func() {
		if r := recover(); r != nil {
			o.Step, o.Err = step, fmt.Errorf("panic: %v", r)
		}
		o.Duration = sw.Elapsed()
	}()

	ctx := parent
	if b.RegionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, b.RegionTimeout)
		defer cancel()
	}
	fail := func(at string, err error) Outcome {
		o.Step, o.Err = at, err
		return o
	}

	if err := ctx.Err(); err != nil {
		return fail(StepLoad, err)
	}
	ds, dumpPath, err := b.load(name)
	if err != nil {
		return fail(StepLoad, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(StepLoad, err)
	}

	if b.Mode == ModeAggregate || (b.Mode == ModeRun && b.KeepDumps) {
		step = StepWrite
		path, err := b.outputPath(dataset.RegionFile(name, b.Compression))
		if err == nil {
			err = dataset.WriteRegion(b.FS, path, ds, b.Compression)
		}
		if err != nil {
			return fail(StepWrite, err)
		}
		o.Artifact = path
		if b.Mode == ModeAggregate {
			o.Columns = len(ds.Layers)
			return o
		}
	}

	step = StepAggregate
	res, err := b.Aggregator.Process(ctx, ds)
	if err != nil {
		return fail(StepAggregate, err)
	}
	o.UnitsTotal = res.UnitsTotal
	o.UnitsKept = res.Dataset.Rows()
	o.Columns = len(res.Dataset.Columns)

	step = StepWrite
	path, err := b.outputPath(dataset.FilteredFile(name, b.Compression))
	if err == nil {
		err = dataset.WriteFiltered(b.FS, path, res.Dataset, b.Compression)
	}
	if err != nil {
		return fail(StepWrite, err)
	}
	o.Artifact = path

	if b.WriteCSV {
		csvPath, err := b.outputPath(dataset.CSVFile(name))
		if err == nil {
			err = dataset.WriteCSVFile(b.FS, csvPath, res.Dataset)
		}
		if err != nil {
			return fail(StepWrite, err)
		}
	}
	if b.DiagnosticsDir != "" {
		step = StepDiagnostics
		dir, err := security.JoinWithin(b.DiagnosticsDir, name)
		if err == nil {
			err = WriteDiagnostics(b.FS, dir, res)
		}
		if err != nil {
			return fail(StepDiagnostics, err)
		}
	}
	if b.Mode == ModeProcess && b.CleanDumps {
		step = StepWrite
		if err := b.FS.Remove(dumpPath); err != nil {
			monitoring.Logf("[Batch] region=%s failed to remove dump %s: %v", name, dumpPath, err)
		}
	}
	return o
}

// load returns the region's input stack, and for ModeProcess the dump it
// was read from.
func (b *Batch) load(name string) (*dataset.RegionDataset, string, error) {
	if b.Mode != ModeProcess {
		ds, err := b.Loader.Load(name)
		return ds, "", err
	}
	for _, c := range []dataset.Compression{dataset.Gzip, dataset.Zstd} {
		path, err := security.JoinWithin(b.InputDir, dataset.RegionFile(name, c))
		if err != nil {
			return nil, "", err
		}
		if !b.FS.Exists(path) {
			continue
		}
		ds, err := dataset.ReadRegion(b.FS, path)
		if err != nil {
			return nil, "", fmt.Errorf("region %s: %w", name, err)
		}
		if ds.Region != name {
			return nil, "", fmt.Errorf("dump %s holds region %q", path, ds.Region)
		}
		return ds, path, nil
	}
	return nil, "", &MissingInputError{Region: name, Artifact: "region dump", Err: fs.ErrNotExist}
}

func (b *Batch) outputPath(file string) (string, error) {
	if err := security.ValidateName("artifact", file); err != nil {
		return "", err
	}
	return security.JoinWithin(b.OutputDir, filepath.Base(file))
}
