package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/dataset"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/db"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/monitoring"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/region"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/testutil"
)

const testManifest = `
features:
  slope: dem/slope.tif
categorical_features:
  lithology: geology/lithology.tif
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

// setup writes two regions, one of them missing its lithology grid, and a
// manifest describing them.
func setup(t *testing.T) (input, manifestPath string) {
	t.Helper()
	dir := t.TempDir()
	input = filepath.Join(dir, "regions")
	fsys := fsutil.OSFileSystem{}

	testutil.WriteRegion(t, fsys, input, "alpha", testutil.FourByFour("alpha"))
	broken := testutil.FourByFour("beta")
	delete(broken, "lithology")
	testutil.WriteRegion(t, fsys, input, "beta", broken)

	manifestPath = filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(testManifest), 0644))
	return input, manifestPath
}

func TestRunEndToEnd(t *testing.T) {
	input, manifestPath := setup(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "out")
	ledger := filepath.Join(dir, "ledger.db")
	promFile := filepath.Join(dir, "slopeunits.prom")

	out, err := execute(t, "run",
		"--input", input, "--output", output, "--manifest", manifestPath,
		"--min-unit-count", "4", "--workers", "2", "--csv",
		"--ledger", ledger, "--metrics-file", promFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 regions failed")
	assert.Contains(t, out, "succeeded=1 failed=1")
	assert.Contains(t, out, "FAILED beta (load)")

	d, err := dataset.ReadFiltered(fsutil.OSFileSystem{}, filepath.Join(output, "alpha.dataset.gz"))
	require.NoError(t, err)
	assert.Equal(t, []string{"slope_mean", "slope_var", "slope_min", "slope_max", "lithology"}, d.Columns)
	assert.Equal(t, []int64{1, 2, 3}, d.KeptIDs)
	assert.FileExists(t, filepath.Join(output, "alpha.csv"))
	assert.NoFileExists(t, filepath.Join(output, "beta.dataset.gz"))

	prom, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `slopeunits_regions_total{outcome="failed",stage="run"} 1`)
	assert.Contains(t, string(prom), `slopeunits_units_total{decision="kept"} 3`)

	// ledger
	out, err = execute(t, "history", "--ledger", ledger, "--json")
	require.NoError(t, err)
	var runs []db.BatchRun
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run", runs[0].Stage)
	assert.Equal(t, db.StatusPartial, runs[0].Status)
	assert.Equal(t, 1, runs[0].RegionsSucceeded)
	assert.Contains(t, runs[0].ParamsJSON, `"min_unit_count":4`)

	out, err = execute(t, "history", "--ledger", ledger, "--run", runs[0].RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "load: region beta: missing grid")

	out, err = execute(t, "history", "--ledger", ledger, "--region", "alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "kept 3/3 units")

	_, err = execute(t, "history", "--ledger", ledger, "--region", "beta")
	assert.Error(t, err)

	out, err = execute(t, "history", "--ledger", ledger)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].RunID)
}

func TestAggregateThenProcess(t *testing.T) {
	input, manifestPath := setup(t)
	dir := t.TempDir()
	dumps := filepath.Join(dir, "dumps")
	output := filepath.Join(dir, "out")

	_, err := execute(t, "aggregate", "--input", input, "--output", dumps,
		"--manifest", manifestPath, "--compression", "zstd")
	require.Error(t, err, "beta has no lithology grid")
	assert.FileExists(t, filepath.Join(dumps, "alpha.region.zst"))

	out, err := execute(t, "inspect", filepath.Join(dumps, "alpha.region.zst"))
	require.NoError(t, err)
	assert.Contains(t, out, "region")
	assert.Contains(t, out, "slope, lithology")

	out, err = execute(t, "process", "--input", dumps, "--output", output,
		"--min-unit-count", "5", "--clean-dumps")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded=1 failed=0")
	assert.NoFileExists(t, filepath.Join(dumps, "alpha.region.zst"))

	out, err = execute(t, "inspect", "--json", filepath.Join(output, "alpha.dataset.gz"))
	require.NoError(t, err)
	var s artifactSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "dataset", s.Kind)
	assert.Equal(t, "alpha", s.Region)
	assert.Equal(t, 0, s.Rows)
	assert.Nil(t, s.MeanTarget)
	assert.Equal(t, [2]int{4, 4}, s.Shape)
	assert.Equal(t, [4]float64{0, 0, 4, 4}, s.Bounds)
	assert.Equal(t, testutil.TestCRS, s.CRS)
}

func TestPipelineConfigLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"min_unit_count": 9, "compression": "zstd", "workers": 3}`), 0644))

	opts := &pipelineOptions{}
	cmd := &cobra.Command{Use: "run"}
	opts.bindFlags(cmd, region.ModeRun)
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--min-unit-count", "2", "--input", "x", "--output", "y"}))

	cfg, err := opts.pipelineConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.GetMinUnitCount())
	assert.Equal(t, "zstd", cfg.GetCompression())
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.False(t, cmd.Flags().Changed("workers"))

	cmd = &cobra.Command{Use: "process"}
	(&pipelineOptions{}).bindFlags(cmd, region.ModeProcess)
	assert.Nil(t, cmd.Flags().Lookup("manifest"))
	assert.Nil(t, cmd.Flags().Lookup("keep-dumps"))
	assert.NotNil(t, cmd.Flags().Lookup("clean-dumps"))
}

func TestPipelineRejectsBadFlags(t *testing.T) {
	input, _ := setup(t)
	out := t.TempDir()

	_, err := execute(t, "run", "--input", input, "--output", out, "--compression", "lz4")
	assert.ErrorContains(t, err, "compression")

	_, err = execute(t, "run", "--input", input, "--output", out, "--config", filepath.Join(out, "cfg.yaml"))
	assert.ErrorContains(t, err, ".json")

	_, err = execute(t, "run", "--output", out)
	assert.Error(t, err, "missing --input")

	_, err = execute(t, "run", "--input", input, "--output", out, "--log-format", "xml")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slopeunits dev")
}
