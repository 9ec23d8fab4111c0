package grid

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
)

// EHdr file extensions.
const (
	ExtBIL = ".bil"
	ExtHDR = ".hdr"
	ExtPRJ = ".prj"
)

// header is the parsed key/value content of an ESRI .hdr file.
type header struct {
	rows, cols int
	nbits      int
	pixelType  string // FLOAT, SIGNEDINT or UNSIGNEDINT
	order      binary.ByteOrder
	ulx, uly   float64
	xdim, ydim float64
	noData     *float64
}

// BasePath strips a .bil/.hdr/.prj extension so callers can pass any of the
// three sidecar names.
func BasePath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtBIL, ExtHDR, ExtPRJ:
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

// ReadEHdr loads a single-band EHdr raster (name.bil + name.hdr, optional
// name.prj for the CRS).
func ReadEHdr(fsys fsutil.FileSystem, path string) (*Grid, error) {
	base := BasePath(path)

	hb, err := fsys.ReadFile(base + ExtHDR)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	h, err := parseHeader(hb)
	if err != nil {
		return nil, fmt.Errorf("invalid header %s: %w", base+ExtHDR, err)
	}

	typ, err := dataTypeFor(h.pixelType, h.nbits)
	if err != nil {
		return nil, fmt.Errorf("invalid header %s: %w", base+ExtHDR, err)
	}

	raw, err := fsys.ReadFile(base + ExtBIL)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	n := h.rows * h.cols
	if want := n * h.nbits / 8; len(raw) != want {
		return nil, fmt.Errorf("%s has %d bytes, want %d for %dx%d %s", base+ExtBIL, len(raw), want, h.rows, h.cols, typ)
	}

	data := make([]float64, n)
	decodeSamples(raw, data, typ, h.order)

	tr := Transform{
		A: h.xdim,
		C: h.ulx - h.xdim/2,
		E: -h.ydim,
		F: h.uly + h.ydim/2,
	}

	var crs string
	if fsys.Exists(base + ExtPRJ) {
		pb, err := fsys.ReadFile(base + ExtPRJ)
		if err != nil {
			return nil, fmt.Errorf("failed to read projection: %w", err)
		}
		crs = strings.TrimSpace(string(pb))
	}

	g, err := FromSlice(h.rows, h.cols, data, typ, tr, crs)
	if err != nil {
		return nil, err
	}
	if h.noData != nil {
		g.SetNoData(sampleValue(*h.noData, typ))
	}
	return g, nil
}

// sampleValue rounds a header value to what a sample of typ can hold, so a
// NODATA marker compares equal to the decoded samples carrying it.
func sampleValue(v float64, typ DataType) float64 {
	switch typ {
	case Float32:
		return float64(float32(v))
	case Float64:
		return v
	default:
		return math.Trunc(v)
	}
}

// WriteEHdr stores g as name.bil/name.hdr (and name.prj when the grid has a
// CRS). Only north-up, unrotated transforms can be expressed in EHdr.
func WriteEHdr(fsys fsutil.FileSystem, path string, g *Grid) error {
	tr := g.Transform
	if tr.B != 0 || tr.D != 0 || tr.A <= 0 || tr.E >= 0 {
		return fmt.Errorf("EHdr cannot represent transform %s", tr)
	}
	base := BasePath(path)

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "BYTEORDER      I\n")
	fmt.Fprintf(&hdr, "LAYOUT         BIL\n")
	fmt.Fprintf(&hdr, "NROWS          %d\n", g.Rows)
	fmt.Fprintf(&hdr, "NCOLS          %d\n", g.Cols)
	fmt.Fprintf(&hdr, "NBANDS         1\n")
	fmt.Fprintf(&hdr, "NBITS          %d\n", g.Type.Bits())
	fmt.Fprintf(&hdr, "BANDROWBYTES   %d\n", g.Cols*g.Type.Bits()/8)
	fmt.Fprintf(&hdr, "TOTALROWBYTES  %d\n", g.Cols*g.Type.Bits()/8)
	fmt.Fprintf(&hdr, "PIXELTYPE      %s\n", pixelTypeFor(g.Type))
	fmt.Fprintf(&hdr, "ULXMAP         %s\n", formatFloat(tr.C+tr.A/2))
	fmt.Fprintf(&hdr, "ULYMAP         %s\n", formatFloat(tr.F+tr.E/2))
	fmt.Fprintf(&hdr, "XDIM           %s\n", formatFloat(tr.A))
	fmt.Fprintf(&hdr, "YDIM           %s\n", formatFloat(-tr.E))
	if g.NoData != nil {
		fmt.Fprintf(&hdr, "NODATA         %s\n", formatFloat(*g.NoData))
	}

	if err := fsys.WriteFile(base+ExtHDR, hdr.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := fsys.WriteFile(base+ExtBIL, encodeSamples(g.Data, g.Type), 0644); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if g.CRS != "" {
		if err := fsys.WriteFile(base+ExtPRJ, []byte(g.CRS+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write projection: %w", err)
		}
	}
	return nil
}

func parseHeader(b []byte) (*header, error) {
	h := &header{order: binary.LittleEndian, nbits: 8, xdim: 1, ydim: 1}
	seen := make(map[string]bool)

	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		key, val := strings.ToUpper(fields[0]), fields[1]
		seen[key] = true

		var err error
		switch key {
		case "BYTEORDER":
			switch strings.ToUpper(val) {
			case "I", "LSBFIRST":
				h.order = binary.LittleEndian
			case "M", "MSBFIRST":
				h.order = binary.BigEndian
			default:
				err = fmt.Errorf("unknown byte order %q", val)
			}
		case "LAYOUT":
			if l := strings.ToUpper(val); l != "BIL" && l != "BIP" && l != "BSQ" {
				err = fmt.Errorf("unsupported layout %q", val)
			}
		case "NBANDS":
			if val != "1" {
				err = fmt.Errorf("only single-band grids are supported, got %s bands", val)
			}
		case "NROWS":
			h.rows, err = strconv.Atoi(val)
		case "NCOLS":
			h.cols, err = strconv.Atoi(val)
		case "NBITS":
			h.nbits, err = strconv.Atoi(val)
		case "PIXELTYPE":
			h.pixelType = strings.ToUpper(val)
		case "ULXMAP":
			h.ulx, err = strconv.ParseFloat(val, 64)
		case "ULYMAP":
			h.uly, err = strconv.ParseFloat(val, 64)
		case "XDIM":
			h.xdim, err = strconv.ParseFloat(val, 64)
		case "YDIM":
			h.ydim, err = strconv.ParseFloat(val, 64)
		case "NODATA":
			var nd float64
			nd, err = strconv.ParseFloat(val, 64)
			h.noData = &nd
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, k := range []string{"NROWS", "NCOLS"} {
		if !seen[k] {
			return nil, fmt.Errorf("missing %s", k)
		}
	}
	if h.rows <= 0 || h.cols <= 0 {
		return nil, fmt.Errorf("invalid shape %dx%d", h.rows, h.cols)
	}
	if h.xdim <= 0 || h.ydim <= 0 {
		return nil, fmt.Errorf("invalid cell size %gx%g", h.xdim, h.ydim)
	}
	return h, nil
}

func dataTypeFor(pixelType string, nbits int) (DataType, error) {
	switch {
	case pixelType == "FLOAT" && nbits == 32:
		return Float32, nil
	case pixelType == "FLOAT" && nbits == 64:
		return Float64, nil
	case pixelType == "SIGNEDINT" && nbits == 16:
		return Int16, nil
	case pixelType == "SIGNEDINT" && nbits == 32:
		return Int32, nil
	case pixelType != "FLOAT" && pixelType != "SIGNEDINT" && nbits == 8:
		return UInt8, nil
	case pixelType != "FLOAT" && pixelType != "SIGNEDINT" && nbits == 16:
		return UInt16, nil
	case pixelType != "FLOAT" && pixelType != "SIGNEDINT" && nbits == 32:
		return UInt32, nil
	}
	return 0, fmt.Errorf("unsupported sample format %s/%d bits", pixelType, nbits)
}

func pixelTypeFor(t DataType) string {
	switch t {
	case Float32, Float64:
		return "FLOAT"
	case Int16, Int32:
		return "SIGNEDINT"
	default:
		return "UNSIGNEDINT"
	}
}

func decodeSamples(raw []byte, out []float64, typ DataType, order binary.ByteOrder) {
	for i := range out {
		switch typ {
		case UInt8:
			out[i] = float64(raw[i])
		case Int16:
			out[i] = float64(int16(order.Uint16(raw[i*2:])))
		case UInt16:
			out[i] = float64(order.Uint16(raw[i*2:]))
		case Int32:
			out[i] = float64(int32(order.Uint32(raw[i*4:])))
		case UInt32:
			out[i] = float64(order.Uint32(raw[i*4:]))
		case Float32:
			out[i] = float64(math.Float32frombits(order.Uint32(raw[i*4:])))
		case Float64:
			out[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
	}
}

func encodeSamples(data []float64, typ DataType) []byte {
	le := binary.LittleEndian
	out := make([]byte, len(data)*typ.Bits()/8)
	for i, v := range data {
		switch typ {
		case UInt8:
			out[i] = uint8(v)
		case Int16:
			le.PutUint16(out[i*2:], uint16(int16(v)))
		case UInt16:
			le.PutUint16(out[i*2:], uint16(v))
		case Int32:
			le.PutUint32(out[i*4:], uint32(int32(v)))
		case UInt32:
			le.PutUint32(out[i*4:], uint32(v))
		case Float32:
			le.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		case Float64:
			le.PutUint64(out[i*8:], math.Float64bits(v))
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
