package main

import (
	"flag"
	"strings"
)

type runFlags struct {
	output         string
	variantsConfig string
	deconvConfig   string
	scheduleFile   string
	filtersFile    string
	locations      []string
	seed           int64
	wide           bool
	jsonOutput     string
	workers        int
	tallyFile      string
}

func parseFlags() runFlags {
	var f runFlags
	var locations string

	flag.StringVar(&f.output, "output", "deconvolved.csv", "Write results to this output CSV.")
	flag.StringVar(&f.variantsConfig, "variants-config", "", "YAML variant configuration used during deconvolution.")
	flag.StringVar(&f.deconvConfig, "deconv-config", "", "YAML configuration of parameters for deconvolution.")
	flag.StringVar(&f.scheduleFile, "schedule", "", "(Optional) YAML variant schedule mapping window start dates to active variants.")
	flag.StringVar(&f.filtersFile, "filters", "", "(Optional) CSV mutation-filter list.")
	flag.StringVar(&locations, "location", "", "(Optional) Comma-delimited names of locations/catchment areas to process. Overrides the configured list.")
	flag.Int64Var(&f.seed, "seed", 0, "(Optional) Seed for the random generator. 0 uses a time-based seed.")
	flag.BoolVar(&f.wide, "wide", false, "(Optional) Write the wide form (one row per location and date) instead of the long form.")
	flag.StringVar(&f.jsonOutput, "json", "", "(Optional) Additionally write hierarchical JSON output to this path.")
	flag.IntVar(&f.workers, "workers", 0, "(Optional) Concurrent slice fits. 0 uses all CPUs.")
	flag.Parse()

	if locations != "" {
		for _, loc := range strings.Split(locations, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				f.locations = append(f.locations, loc)
			}
		}
	}

	f.tallyFile = flag.Arg(0)

	return f
}
