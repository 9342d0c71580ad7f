package tallymut

import (
	"log"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	lollipop "github.com/gordonkoehn/LolliPop"
)

// Mutation-relationship tags that recode to a positive variant indicator. Any
// other non-empty tag is rejected instead of being silently coerced.
var positiveTags = map[string]bool{
	"extra":  true,
	"mut":    true,
	"shared": true,
	"revert": true,
	"subset": true,
}

// Options drive GeneralPreprocess.
type Options struct {
	// VariantMap renames source (pangolin) columns to canonical names and
	// must be injective.
	VariantMap map[string]string

	// Variants is the canonical variant column order.
	Variants []string

	// Excluded columns are dropped if present.
	Excluded []string

	// DropTags lists relationship tags whose rows are discarded, evaluated
	// one variant column at a time against the shrinking row set.
	DropTags []string

	// Start and End bound the run to [Start, End). Zero means unbounded.
	Start time.Time
	End   time.Time

	// NoDate disables all date handling.
	NoDate bool

	// RemoveDeletions drops rows whose base denotes a deletion.
	RemoveDeletions bool

	// SkipComplement suppresses the synthesized complement rows. Complements
	// are appended by default.
	SkipComplement bool
}

// GeneralPreprocess turns a raw tally into the signature matrix: canonical
// columns, parsed fractions and dates, tag-based row filtering, exhaustive
// tag-to-indicator recoding, removal of uninformative signatures, and the
// appended complement rows carrying the undetermined residual.
func GeneralPreprocess(raw *RawTable, opt Options) (*Table, error) {
	if err := checkInjective(opt.VariantMap); err != nil {
		return nil, err
	}

	raw.Rename(opt.VariantMap)
	raw.Drop(opt.Excluded)

	colFrac := raw.Col("frac")
	if colFrac < 0 {
		return nil, lollipop.Dataf("required column %q is missing from the tally table", "frac")
	}
	colDate := raw.Col("date")
	if colDate < 0 && !opt.NoDate {
		return nil, lollipop.Dataf("required column %q is missing from the tally table", "date")
	}

	colSample := raw.Col("sample")
	colPos := raw.Col("pos")
	colBase := raw.Col("base")
	colMutation := raw.Col("mutations")

	colLocation := raw.Col("location")
	usedLocationCode := false
	if colLocation < 0 {
		colLocation = raw.Col("location_code")
		usedLocationCode = colLocation >= 0
	}

	if opt.RemoveDeletions && colBase < 0 {
		log.Printf("Warning: remove_deletions is set, but no 'base' column is present in columns %v\n", raw.Columns)
	}

	variantCols, variantIdx := presentVariants(raw, opt.Variants)

	type pending struct {
		row  Row
		tags []string
	}

	kept := make([]pending, 0, len(raw.Rows))
	for i, record := range raw.Rows {
		frac := record[colFrac]
		if frac == "" {
			continue
		}
		if !opt.NoDate && record[colDate] == "" {
			continue
		}

		p := pending{row: Row{Weight: 1}}

		var err error
		if p.row.Frac, err = parseFrac(frac, i); err != nil {
			return nil, err
		}

		if colPos >= 0 && colBase >= 0 {
			// SNV-based tally: the signature is the position plus base.
			p.row.Mutation = record[colPos] + record[colBase]
		} else if colMutation >= 0 {
			// Pre-aggregated (cojac) tally: no single mutation per row.
			p.row.Mutation = record[colMutation]
		}

		if !opt.NoDate {
			if p.row.Date, err = dateparse.ParseAny(record[colDate]); err != nil {
				return nil, lollipop.Dataf("tally row %d: cannot parse date %q: %v", i+1, record[colDate], err)
			}
			if !opt.Start.IsZero() && p.row.Date.Before(opt.Start) {
				continue
			}
			if !opt.End.IsZero() && !p.row.Date.Before(opt.End) {
				continue
			}
		}

		if opt.RemoveDeletions && colBase >= 0 && record[colBase] == "-" {
			continue
		}

		if colSample >= 0 {
			p.row.Sample = record[colSample]
		}
		if colLocation >= 0 {
			p.row.Location = record[colLocation]
		}

		p.tags = make([]string, len(variantCols))
		for j, ci := range variantIdx {
			p.tags[j] = record[ci]
		}

		kept = append(kept, p)
	}

	// Drop rows tagged with an excluded relationship, one variant column at a
	// time. Each column is evaluated against the row set left by the previous
	// one.
	if len(opt.DropTags) > 0 {
		doomed := make(map[string]bool, len(opt.DropTags))
		for _, t := range opt.DropTags {
			doomed[t] = true
		}
		for j := range variantCols {
			next := kept[:0]
			for _, p := range kept {
				if !doomed[p.tags[j]] {
					next = append(next, p)
				}
			}
			kept = next
		}
	}

	out := &Table{
		Variants:         variantCols,
		NoDate:           opt.NoDate,
		HasLocation:      colLocation >= 0,
		UsedLocationCode: usedLocationCode,
	}

	for _, p := range kept {
		p.row.Indicators = make([]int, len(variantCols))
		for j, tag := range p.tags {
			bit, err := recodeTag(tag, variantCols[j])
			if err != nil {
				return nil, err
			}
			p.row.Indicators[j] = bit
		}

		if !Informative(p.row.Indicators) {
			continue
		}

		out.Rows = append(out.Rows, p.row)
	}

	if !opt.SkipComplement {
		n := len(out.Rows)
		for i := 0; i < n; i++ {
			out.Rows = append(out.Rows, Complement(out.Rows[i]))
		}
	}

	if opt.NoDate {
		stampSampleDates(out.Rows)
	}

	return out, nil
}

// stampSampleDates assigns each sample a distinct dummy date, one day apart in
// order of first appearance. Date-less runs deconvolve each sample on its own,
// and the dummy dates keep the kernel machinery working.
func stampSampleDates(rows []Row) {
	epoch := time.Date(1999, 12, 1, 0, 0, 0, 0, time.UTC)

	dateOf := make(map[string]time.Time)
	for i := range rows {
		d, ok := dateOf[rows[i].Sample]
		if !ok {
			d = epoch.AddDate(0, 0, len(dateOf))
			dateOf[rows[i].Sample] = d
		}
		rows[i].Date = d
	}
}

func checkInjective(variantMap map[string]string) error {
	seen := make(map[string]string, len(variantMap))
	for src, canonical := range variantMap {
		if prior, exists := seen[canonical]; exists {
			return lollipop.Configf("variant map is not injective: %q and %q both rename to %q", prior, src, canonical)
		}
		seen[canonical] = src
	}
	return nil
}

// presentVariants intersects the declared variant list with the table columns,
// preserving the declared order, and warns about declared variants that never
// appear.
func presentVariants(raw *RawTable, variants []string) (cols []string, idx []int) {
	var absent []string
	for _, v := range variants {
		if ci := raw.Col(v); ci >= 0 {
			cols = append(cols, v)
			idx = append(idx, ci)
		} else {
			absent = append(absent, v)
		}
	}
	if len(absent) > 0 {
		log.Printf("Warning: variants %v are not present in tally columns %v\n", absent, raw.Columns)
	}
	return cols, idx
}

func parseFrac(s string, rowIdx int) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, lollipop.Dataf("tally row %d: cannot parse frac %q: %v", rowIdx+1, s, err)
	}
	if f < 0 || f > 1 {
		return 0, lollipop.Dataf("tally row %d: frac %v is outside [0, 1]", rowIdx+1, f)
	}
	return f, nil
}

func recodeTag(tag, variant string) (int, error) {
	if tag == "" {
		return 0, nil
	}
	if positiveTags[tag] {
		return 1, nil
	}
	return 0, lollipop.Dataf("unrecognized mutation-relationship tag %q in variant column %q", tag, variant)
}
