// Package manifest reads the feature manifest that declares which grids a
// region batch provides and how each is summarised.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/features"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
	"github.com/ArushRam/SlopeUnitDataPipeline/internal/security"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Default grid names inside a region directory.
const (
	DefaultSlopeUnits = "slopeunits"
	DefaultInventory  = "inventory"
	DefaultRegion     = "region"
)

// GridNames overrides the base names of the non-feature grids.
type GridNames struct {
	SlopeUnits string `json:"slopeunits,omitempty" yaml:"slopeunits,omitempty"`
	Inventory  string `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Region     string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Manifest declares the features of a batch. Feature values are the source
// paths handed to the terrain toolchain; inside a region directory each
// feature is read from a grid named after the feature.
type Manifest struct {
	Features            map[string]string `json:"features" yaml:"features"`
	CategoricalFeatures map[string]string `json:"categorical_features,omitempty" yaml:"categorical_features,omitempty"`
	// Inventory and Elevation are the upstream source layers the terrain
	// toolchain rasterises. They are accepted for manifest compatibility
	// only; grid base names come from Grids.
	Inventory           string            `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Elevation           string            `json:"elevation,omitempty" yaml:"elevation,omitempty"`
	FeatureOrder        []string          `json:"feature_order,omitempty" yaml:"feature_order,omitempty"`
	Grids               GridNames         `json:"grids,omitempty" yaml:"grids,omitempty"`
}

// ValidationError reports a manifest that cannot drive a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

// Default returns the manifest used when none is given: every default
// feature, all continuous.
func Default() *Manifest {
	m := &Manifest{Features: make(map[string]string, len(features.DefaultFeatureNames))}
	for _, n := range features.DefaultFeatureNames {
		m.Features[n] = ""
	}
	return m
}

// Load reads a manifest from a .json, .yaml or .yml file.
func Load(fsys fsutil.FileSystem, path string) (*Manifest, error) {
	clean := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(clean))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("manifest must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := fsys.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("manifest too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := fsys.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if ext == ".json" {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// ParseJSON decodes and validates a JSON manifest.
func ParseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseYAML decodes and validates a YAML manifest.
func ParseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest: at least one feature, names usable as
// file names, no feature declared both continuous and categorical, and a
// feature_order that lists each declared feature at most once.
func (m *Manifest) Validate() error {
	if len(m.Features)+len(m.CategoricalFeatures) == 0 {
		return &ValidationError{Field: "features", Reason: "no features declared"}
	}
	for name := range m.Features {
		if err := checkName("features", name); err != nil {
			return err
		}
		if _, ok := m.CategoricalFeatures[name]; ok {
			return &ValidationError{Field: "categorical_features", Reason: fmt.Sprintf("%q is also a continuous feature", name)}
		}
	}
	for name := range m.CategoricalFeatures {
		if err := checkName("categorical_features", name); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(m.FeatureOrder))
	for _, name := range m.FeatureOrder {
		if !m.declared(name) {
			return &ValidationError{Field: "feature_order", Reason: fmt.Sprintf("%q is not a declared feature", name)}
		}
		if seen[name] {
			return &ValidationError{Field: "feature_order", Reason: fmt.Sprintf("%q listed twice", name)}
		}
		seen[name] = true
	}

	for field, n := range map[string]string{
		"grids.slopeunits": m.Grids.SlopeUnits,
		"grids.inventory":  m.Grids.Inventory,
		"grids.region":     m.Grids.Region,
	} {
		if n == "" {
			continue
		}
		if err := checkName(field, n); err != nil {
			return err
		}
	}
	return nil
}

func checkName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: field, Reason: "empty name"}
	}
	if err := security.ValidateName("grid", name); err != nil {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a plain file name", name)}
	}
	return nil
}

func (m *Manifest) declared(name string) bool {
	if _, ok := m.Features[name]; ok {
		return true
	}
	_, ok := m.CategoricalFeatures[name]
	return ok
}

// Names returns every declared feature in table order: feature_order when
// given, otherwise the default feature order restricted to the declared
// features. Declared features not placed by either come last, sorted by
// name.
func (m *Manifest) Names() []string {
	order := m.FeatureOrder
	if len(order) == 0 {
		order = features.DefaultFeatureNames
	}

	out := make([]string, 0, len(m.Features)+len(m.CategoricalFeatures))
	placed := make(map[string]bool)
	for _, n := range order {
		if m.declared(n) && !placed[n] {
			out = append(out, n)
			placed[n] = true
		}
	}

	var rest []string
	for n := range m.Features {
		if !placed[n] {
			rest = append(rest, n)
		}
	}
	for n := range m.CategoricalFeatures {
		if !placed[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Categorical lists the categorical feature names, sorted.
func (m *Manifest) Categorical() []string {
	out := make([]string, 0, len(m.CategoricalFeatures))
	for n := range m.CategoricalFeatures {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Descriptors builds the feature descriptors in table order.
func (m *Manifest) Descriptors(extreme []string) []features.Descriptor {
	return features.Describe(m.Names(), m.Categorical(), extreme)
}

// SlopeUnitsName is the base name of the partition grid.
func (m *Manifest) SlopeUnitsName() string {
	return orDefault(m.Grids.SlopeUnits, DefaultSlopeUnits)
}

// InventoryName is the base name of the target grid.
func (m *Manifest) InventoryName() string {
	return orDefault(m.Grids.Inventory, DefaultInventory)
}

// RegionName is the base name of the boundary grid.
func (m *Manifest) RegionName() string {
	return orDefault(m.Grids.Region, DefaultRegion)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
