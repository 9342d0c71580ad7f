// deconvolute estimates the relative abundance of known pathogen lineages
// over time and location from a wastewater mutation tally.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gordonkoehn/LolliPop/aggregate"
	"github.com/gordonkoehn/LolliPop/deconv"
	"github.com/gordonkoehn/LolliPop/export"
	"github.com/gordonkoehn/LolliPop/tallymut"
	"github.com/gordonkoehn/LolliPop/vconfig"
)

func main() {
	f := parseFlags()

	if f.variantsConfig == "" || f.deconvConfig == "" || f.tallyFile == "" {
		flag.PrintDefaults()
		log.Fatalln("Please provide -variants-config, -deconv-config, and a tally file argument")
	}

	if err := run(context.Background(), f); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, f runFlags) error {
	varCfg, err := vconfig.LoadVariants(f.variantsConfig)
	if err != nil {
		return err
	}
	decCfg, err := vconfig.LoadDeconv(f.deconvConfig)
	if err != nil {
		return err
	}

	var sched *vconfig.Schedule
	if f.scheduleFile != "" {
		if sched, err = vconfig.LoadSchedule(f.scheduleFile); err != nil {
			return err
		}
	}

	var filters []tallymut.MutationFilter
	if f.filtersFile != "" {
		if filters, err = tallymut.LoadMutationFilters(f.filtersFile); err != nil {
			return err
		}
		log.Println("Loaded", len(filters), "mutation filters")
	}

	windows, variants, err := deconv.PlanWindows(varCfg.VariantsList, sched, varCfg.NoDate)
	if err != nil {
		return err
	}
	log.Println("Planned", len(windows), "time windows over", len(variants), "variants")

	bounds, err := varCfg.Bounds()
	if err != nil {
		return err
	}

	raw, err := tallymut.Load(f.tallyFile)
	if err != nil {
		return err
	}
	log.Println("Loaded", len(raw.Rows), "tally rows from", f.tallyFile)

	table, err := tallymut.GeneralPreprocess(raw, tallymut.Options{
		VariantMap:      varCfg.VariantsPangolin,
		Variants:        variants,
		Excluded:        varCfg.VariantsNotReported,
		DropTags:        varCfg.ToDrop,
		Start:           bounds.Start,
		End:             bounds.End,
		NoDate:          varCfg.NoDate,
		RemoveDeletions: varCfg.DeletionsRemoved(),
	})
	if err != nil {
		return err
	}
	table = table.FilterMutations(filters)
	log.Println("Preprocessed to", len(table.Rows), "signature rows (complements included)")

	allowed := f.locations
	if len(allowed) == 0 {
		allowed = varCfg.LocationsList
	}
	locations, err := deconv.ResolveLocations(table, allowed, varCfg.NoLoc)
	if err != nil {
		return err
	}
	log.Println("Deconvolving", len(locations), "locations")

	engine, err := deconv.NewEngine(decCfg)
	if err != nil {
		return err
	}

	seed := f.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results, err := deconv.Run(ctx, table, locations, windows, engine, deconv.Options{
		Bootstrap: decCfg.Bootstrap,
		Workers:   f.workers,
	}, rng)
	if err != nil {
		return err
	}
	log.Println("Fitted", len(results), "result tables")

	records, err := aggregate.Melt(results)
	if err != nil {
		return err
	}
	series := aggregate.Combine(records, aggregate.Options{
		Bootstrap:  decCfg.Bootstrap,
		Confint:    engine.Confint != nil,
		LogitScale: engine.Confint != nil && engine.Confint.LogitScale(),
	})

	opt := export.Options{
		NoLoc:    varCfg.NoLoc,
		NoDate:   varCfg.NoDate,
		HasBands: decCfg.Bootstrap > 1 || engine.Confint != nil,
		Variants: append(append([]string(nil), variants...), "undetermined"),
	}

	out, err := os.Create(f.output)
	if err != nil {
		return err
	}
	defer out.Close()

	if f.wide {
		err = export.WriteWideCSV(out, series, opt)
	} else {
		err = export.WriteLongCSV(out, series, opt)
	}
	if err != nil {
		return err
	}
	log.Println("Wrote", f.output)

	if f.jsonOutput != "" {
		jf, err := os.Create(f.jsonOutput)
		if err != nil {
			return err
		}
		defer jf.Close()

		if err := export.WriteJSON(jf, series, opt); err != nil {
			return err
		}
		log.Println("Wrote", f.jsonOutput)
	}

	return nil
}
