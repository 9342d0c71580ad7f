// Package tallymut models the per-mutation tally table and implements the
// preprocessing that turns raw tally rows into the 0/1 variant-signature
// matrix consumed by deconvolution, including the synthesized complement rows.
package tallymut

import (
	"time"
)

// RawTable is a delimited tally file as loaded from disk, before any typing
// or filtering. Columns are addressed by name because variant columns depend
// on the run configuration.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Col returns the index of the named column, or -1.
func (t *RawTable) Col(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Rename replaces column names according to mapping. Names absent from the
// table are ignored.
func (t *RawTable) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if canonical, ok := mapping[c]; ok {
			t.Columns[i] = canonical
		}
	}
}

// Drop removes the named columns if present.
func (t *RawTable) Drop(names []string) {
	doomed := make(map[string]bool, len(names))
	for _, n := range names {
		doomed[n] = true
	}

	keep := make([]int, 0, len(t.Columns))
	kept := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !doomed[c] {
			keep = append(keep, i)
			kept = append(kept, c)
		}
	}
	if len(keep) == len(t.Columns) {
		return
	}

	t.Columns = kept
	for r, row := range t.Rows {
		next := make([]string, len(keep))
		for j, i := range keep {
			next[j] = row[i]
		}
		t.Rows[r] = next
	}
}

// Row is one preprocessed observation: a mutation signature with its measured
// fraction and the 0/1 indicator of which variants carry the mutation.
type Row struct {
	Sample   string
	Location string
	Date     time.Time
	Mutation string
	Frac     float64

	// Indicators is parallel to Table.Variants.
	Indicators   []int
	Undetermined int

	// Weight is the resampling multiplicity, 1 outside of bootstrapping.
	Weight float64

	// Complement marks rows synthesized by signature complementation.
	Complement bool
}

// Table is the preprocessed tally: the design-matrix rows plus the canonical
// variant column order they are indexed by.
type Table struct {
	Variants []string
	Rows     []Row

	NoDate           bool
	HasLocation      bool
	UsedLocationCode bool
}

// Informative reports whether an indicator vector distinguishes any variants:
// all-zero and all-one signatures carry no deconvolution signal.
func Informative(indicators []int) bool {
	sum := 0
	for _, v := range indicators {
		sum += v
	}
	return sum > 0 && sum < len(indicators)
}
