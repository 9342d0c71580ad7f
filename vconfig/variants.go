// Package vconfig loads and validates the YAML configuration documents that
// drive a deconvolution run: the variant definition, the deconvolution
// parameters, and the optional variant schedule.
package vconfig

import (
	"io/ioutil"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"

	lollipop "github.com/gordonkoehn/LolliPop"
)

// VariantsConfig describes which variant columns to expect in the tally table
// and how to canonicalize, filter, and bound them.
type VariantsConfig struct {
	// VariantsPangolin maps source column names (pangolin lineage names) to
	// canonical display names. The mapping must be injective.
	VariantsPangolin map[string]string `yaml:"variants_pangolin"`

	// VariantsList is the canonical list of variants to deconvolve.
	VariantsList []string `yaml:"variants_list"`

	// VariantsNotReported are canonical columns dropped before deconvolution.
	VariantsNotReported []string `yaml:"variants_not_reported"`

	// ToDrop lists mutation-relationship tags whose rows are discarded,
	// e.g. "subset".
	ToDrop []string `yaml:"to_drop"`

	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// LocationsList restricts the run to the named locations. Every entry
	// must exist in the data.
	LocationsList []string `yaml:"locations_list"`

	// RemoveDeletions drops rows whose base denotes a deletion. Defaults to
	// true when absent from the document.
	RemoveDeletions *bool `yaml:"remove_deletions"`

	// NoLoc collapses all rows onto a single synthetic location.
	NoLoc bool `yaml:"no_loc"`

	// NoDate collapses the timeline onto a single synthetic window and
	// disables all date filtering.
	NoDate bool `yaml:"no_date"`
}

// LoadVariants reads and validates a variant configuration document.
func LoadVariants(path string) (*VariantsConfig, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cfg := &VariantsConfig{}
	if err := yaml.Unmarshal(bts, cfg); err != nil {
		return nil, pfx.Err(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the internal consistency of the document. Duplicate
// canonical names in the variant map are fatal.
func (c *VariantsConfig) Validate() error {
	seen := make(map[string]string)
	for src, canonical := range c.VariantsPangolin {
		if prior, exists := seen[canonical]; exists {
			return lollipop.Configf("variant map is not injective: %q and %q both rename to %q", prior, src, canonical)
		}
		seen[canonical] = src
	}

	if _, err := c.Bounds(); err != nil {
		return err
	}

	return nil
}

// DateBounds is the optional half-open [Start, End) interval restricting the
// run. A zero time means the respective bound is unset.
type DateBounds struct {
	Start time.Time
	End   time.Time
}

// Bounds parses the configured start and end dates.
func (c *VariantsConfig) Bounds() (DateBounds, error) {
	var b DateBounds
	var err error

	if c.StartDate != "" {
		if b.Start, err = dateparse.ParseAny(c.StartDate); err != nil {
			return b, lollipop.Configf("cannot parse start_date %q: %v", c.StartDate, err)
		}
	}
	if c.EndDate != "" {
		if b.End, err = dateparse.ParseAny(c.EndDate); err != nil {
			return b, lollipop.Configf("cannot parse end_date %q: %v", c.EndDate, err)
		}
	}

	return b, nil
}

// DeletionsRemoved reports the remove_deletions setting, defaulting to true.
func (c *VariantsConfig) DeletionsRemoved() bool {
	if c.RemoveDeletions == nil {
		return true
	}
	return *c.RemoveDeletions
}
