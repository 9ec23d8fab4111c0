package dataset

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
)

// FormatVersion is bumped whenever the gob layout of either record changes
// incompatibly.
const FormatVersion = 1

// Compression selects the outer encoding of an artifact.
type Compression string

const (
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

// ParseCompression validates a compression name. The empty string means
// gzip.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", Gzip:
		return Gzip, nil
	case Zstd:
		return Zstd, nil
	}
	return "", fmt.Errorf("unknown compression %q (want gzip or zstd)", s)
}

// Ext is the file suffix used for the compression.
func (c Compression) Ext() string {
	if c == Zstd {
		return ".zst"
	}
	return ".gz"
}

// Artifact file name suffixes, before the compression suffix.
const (
	regionSuffix   = ".region"
	filteredSuffix = ".dataset"
)

// RegionFile names the dump of a region's loaded input stack.
func RegionFile(region string, c Compression) string {
	return region + regionSuffix + c.Ext()
}

// FilteredFile names the final artifact of a region.
func FilteredFile(region string, c Compression) string {
	return region + filteredSuffix + c.Ext()
}

// RegionFromDump returns the region name encoded in a dump file name.
func RegionFromDump(name string) (string, bool) {
	for _, c := range []Compression{Gzip, Zstd} {
		if s := regionSuffix + c.Ext(); strings.HasSuffix(name, s) && len(name) > len(s) {
			return strings.TrimSuffix(name, s), true
		}
	}
	return "", false
}

const (
	kindRegion   = "region"
	kindFiltered = "filtered"
)

type header struct {
	Version int
	Kind    string
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func encode(kind string, v interface{}, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case Gzip, "":
		w = gzip.NewWriter(&buf)
	case Zstd:
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w = zw
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	enc := gob.NewEncoder(w)
	if err := enc.Encode(header{Version: FormatVersion, Kind: kind}); err != nil {
		w.Close()
		return nil, err
	}
	if err := enc.Encode(v); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(blob []byte, kind string, v interface{}) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty %s blob", kind)
	}

	var r io.Reader
	switch {
	case bytes.HasPrefix(blob, gzipMagic):
		gz, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case bytes.HasPrefix(blob, zstdMagic):
		zr, err := zstd.NewReader(bytes.NewReader(blob))
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return fmt.Errorf("unrecognised %s encoding", kind)
	}

	dec := gob.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	if h.Kind != kind {
		return fmt.Errorf("artifact holds a %s record, want %s", h.Kind, kind)
	}
	if h.Version != FormatVersion {
		return fmt.Errorf("unsupported %s format version %d (want %d)", kind, h.Version, FormatVersion)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

// MarshalFiltered encodes a filtered dataset.
func MarshalFiltered(d *FilteredDataset, c Compression) ([]byte, error) {
	return encode(kindFiltered, d, c)
}

// UnmarshalFiltered decodes a filtered dataset, detecting the compression.
func UnmarshalFiltered(blob []byte) (*FilteredDataset, error) {
	var d FilteredDataset
	if err := decode(blob, kindFiltered, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MarshalRegion encodes a region input stack.
func MarshalRegion(d *RegionDataset, c Compression) ([]byte, error) {
	return encode(kindRegion, d, c)
}

// UnmarshalRegion decodes a region input stack, detecting the compression.
func UnmarshalRegion(blob []byte) (*RegionDataset, error) {
	var d RegionDataset
	if err := decode(blob, kindRegion, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// WriteFiltered stores d at path.
func WriteFiltered(fsys fsutil.FileSystem, path string, d *FilteredDataset, c Compression) error {
	blob, err := MarshalFiltered(d, c)
	if err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", d.Region, err)
	}
	return fsys.WriteFile(path, blob, 0644)
}

// ReadFiltered loads a filtered dataset from path.
func ReadFiltered(fsys fsutil.FileSystem, path string) (*FilteredDataset, error) {
	blob, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := UnmarshalFiltered(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// WriteRegion stores a region dump at path.
func WriteRegion(fsys fsutil.FileSystem, path string, d *RegionDataset, c Compression) error {
	blob, err := MarshalRegion(d, c)
	if err != nil {
		return fmt.Errorf("failed to encode region %s: %w", d.Region, err)
	}
	return fsys.WriteFile(path, blob, 0644)
}

// ReadRegion loads a region dump from path.
func ReadRegion(fsys fsutil.FileSystem, path string) (*RegionDataset, error) {
	blob, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := UnmarshalRegion(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
