package tallymut

import (
	"io/ioutil"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// MutationFilter names a mutation signature that a filter list would exclude.
type MutationFilter struct {
	Mutation string `csv:"mutation"`
	Reason   string `csv:"reason"`
}

// LoadMutationFilters reads a mutation-filter list file.
func LoadMutationFilters(path string) ([]MutationFilter, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var filters []MutationFilter
	if err := gocsv.UnmarshalBytes(bts, &filters); err != nil {
		return nil, pfx.Err(err)
	}

	return filters, nil
}

// FilterMutations is the mutation-filtering extension point. Filtering is
// currently disabled upstream, so the table passes through unchanged
// regardless of the supplied list.
func (t *Table) FilterMutations(filters []MutationFilter) *Table {
	return t
}
