// Command slopeunits aggregates per-pixel terrain grids into per-slope-unit
// feature tables.
//
// Usage:
//
//	slopeunits run --input data/regions --output data/datasets
//	slopeunits aggregate --input data/regions --output data/dumps
//	slopeunits process --input data/dumps --output data/datasets --clean-dumps
//	slopeunits inspect data/datasets/wenchuan.dataset.gz
//	slopeunits history --ledger data/ledger.db
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
