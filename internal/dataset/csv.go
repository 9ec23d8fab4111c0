package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/fsutil"
)

// CSVFile names the tabular export of a region.
func CSVFile(region string) string {
	return region + ".csv"
}

// WriteCSV writes one row per retained unit:
// unit_id,x,y,count,target followed by the feature columns.
func WriteCSV(w io.Writer, d *FilteredDataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	head := append([]string{"unit_id", "x", "y", "count", "target"}, d.Columns...)
	if err := cw.Write(head); err != nil {
		return err
	}

	rec := make([]string, len(head))
	for i, id := range d.KeptIDs {
		rec[0] = strconv.FormatInt(id, 10)
		rec[1] = formatFloat(d.Centroids[i][0])
		rec[2] = formatFloat(d.Centroids[i][1])
		rec[3] = formatFloat(d.Counts[i])
		rec[4] = formatFloat(d.Y[i])
		for c, v := range d.X[i] {
			if d.Integer[c] {
				rec[5+c] = strconv.FormatInt(int64(v), 10)
			} else {
				rec[5+c] = formatFloat(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile renders the CSV in memory and stores it at path.
func WriteCSVFile(fsys fsutil.FileSystem, path string, d *FilteredDataset) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, d); err != nil {
		return fmt.Errorf("failed to render csv for %s: %w", d.Region, err)
	}
	return fsys.WriteFile(path, buf.Bytes(), 0644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
