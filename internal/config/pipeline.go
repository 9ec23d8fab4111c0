package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

const (
	defaultMinUnitCount  = 5
	defaultRegionTimeout = 10 * time.Minute
	defaultCompression   = "gzip"
)

// PipelineConfig holds the batch settings. Nil fields fall back to the
// defaults returned by the Get* methods, so partial files are safe.
//
// A config is built once at startup (file, then flag overrides) and then
// only read.
type PipelineConfig struct {
	MinUnitCount    *int     `json:"min_unit_count,omitempty"`
	Workers         *int     `json:"workers,omitempty"`
	RegionTimeout   *string  `json:"region_timeout,omitempty"` // duration string like "10m"
	DenseLabels     *bool    `json:"dense_labels,omitempty"`
	ExtremeFeatures []string `json:"extreme_features,omitempty"`

	// Output params
	Compression    *string `json:"compression,omitempty"` // gzip or zstd
	WriteCSV       *bool   `json:"write_csv,omitempty"`
	DiagnosticsDir *string `json:"diagnostics_dir,omitempty"`

	// Bookkeeping
	LedgerPath  *string `json:"ledger_path,omitempty"`
	MetricsFile *string `json:"metrics_file,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its
// default.
func DefaultPipelineConfig() *PipelineConfig {
	c := EmptyPipelineConfig()
	c.MinUnitCount = ptrInt(c.GetMinUnitCount())
	c.Workers = ptrInt(c.GetWorkers())
	c.RegionTimeout = ptrString(c.GetRegionTimeout().String())
	c.DenseLabels = ptrBool(c.GetDenseLabels())
	c.ExtremeFeatures = c.GetExtremeFeatures()
	c.Compression = ptrString(c.GetCompression())
	c.WriteCSV = ptrBool(c.GetWriteCSV())
	c.DiagnosticsDir = ptrString("")
	c.LedgerPath = ptrString("")
	c.MetricsFile = ptrString("")
	return c
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.MinUnitCount != nil && *c.MinUnitCount < 0 {
		return fmt.Errorf("min_unit_count must be non-negative, got %d", *c.MinUnitCount)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.RegionTimeout != nil && *c.RegionTimeout != "" {
		d, err := time.ParseDuration(*c.RegionTimeout)
		if err != nil {
			return fmt.Errorf("invalid region_timeout '%s': %w", *c.RegionTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("region_timeout must be non-negative, got %s", d)
		}
	}
	if c.Compression != nil {
		switch *c.Compression {
		case "", "gzip", "zstd":
		default:
			return fmt.Errorf("compression must be gzip or zstd, got %q", *c.Compression)
		}
	}
	for _, f := range c.ExtremeFeatures {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("extreme_features contains an empty name")
		}
	}
	return nil
}

// Merge returns a copy of c with every field that is set in o replacing
// the value from c. It is used to layer command-line flags over the file.
func (c *PipelineConfig) Merge(o *PipelineConfig) *PipelineConfig {
	out := *c
	if o == nil {
		return &out
	}
	if o.MinUnitCount != nil {
		out.MinUnitCount = o.MinUnitCount
	}
	if o.Workers != nil {
		out.Workers = o.Workers
	}
	if o.RegionTimeout != nil {
		out.RegionTimeout = o.RegionTimeout
	}
	if o.DenseLabels != nil {
		out.DenseLabels = o.DenseLabels
	}
	if o.ExtremeFeatures != nil {
		out.ExtremeFeatures = append([]string(nil), o.ExtremeFeatures...)
	}
	if o.Compression != nil {
		out.Compression = o.Compression
	}
	if o.WriteCSV != nil {
		out.WriteCSV = o.WriteCSV
	}
	if o.DiagnosticsDir != nil {
		out.DiagnosticsDir = o.DiagnosticsDir
	}
	if o.LedgerPath != nil {
		out.LedgerPath = o.LedgerPath
	}
	if o.MetricsFile != nil {
		out.MetricsFile = o.MetricsFile
	}
	return &out
}

// GetMinUnitCount returns the min_unit_count value or the default.
func (c *PipelineConfig) GetMinUnitCount() int {
	if c.MinUnitCount == nil {
		return defaultMinUnitCount
	}
	return *c.MinUnitCount
}

// GetWorkers returns the workers value or the number of CPUs.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers < 1 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetRegionTimeout parses and returns the per-region deadline. Zero means
// no deadline.
func (c *PipelineConfig) GetRegionTimeout() time.Duration {
	if c.RegionTimeout == nil || *c.RegionTimeout == "" {
		return defaultRegionTimeout
	}
	d, err := time.ParseDuration(*c.RegionTimeout)
	if err != nil {
		return defaultRegionTimeout
	}
	return d
}

// GetDenseLabels returns the dense_labels value or the default.
func (c *PipelineConfig) GetDenseLabels() bool {
	if c.DenseLabels == nil {
		return false
	}
	return *c.DenseLabels
}

// GetExtremeFeatures returns the extreme feature list or the default list.
func (c *PipelineConfig) GetExtremeFeatures() []string {
	if c.ExtremeFeatures == nil {
		return append([]string(nil), features.DefaultExtremeFeatures...)
	}
	return append([]string(nil), c.ExtremeFeatures...)
}

// GetCompression returns the compression value or the default.
func (c *PipelineConfig) GetCompression() string {
	if c.Compression == nil || *c.Compression == "" {
		return defaultCompression
	}
	return *c.Compression
}

// GetWriteCSV returns the write_csv value or the default.
func (c *PipelineConfig) GetWriteCSV() bool {
	if c.WriteCSV == nil {
		return false
	}
	return *c.WriteCSV
}

// GetDiagnosticsDir returns the diagnostics directory; empty disables
// diagnostic images.
func (c *PipelineConfig) GetDiagnosticsDir() string {
	if c.DiagnosticsDir == nil {
		return ""
	}
	return *c.DiagnosticsDir
}

// GetLedgerPath returns the sqlite ledger path; empty disables the ledger.
func (c *PipelineConfig) GetLedgerPath() string {
	if c.LedgerPath == nil {
		return ""
	}
	return *c.LedgerPath
}

// GetMetricsFile returns the Prometheus textfile path; empty disables it.
func (c *PipelineConfig) GetMetricsFile() string {
	if c.MetricsFile == nil {
		return ""
	}
	return *c.MetricsFile
}

// JSON renders the config for logging and the run ledger.
func (c *PipelineConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}
