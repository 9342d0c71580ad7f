// Package export writes aggregated series as long or wide delimited tables or
// as nested JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/carbocation/pfx"

	"github.com/gordonkoehn/LolliPop/aggregate"
)

const dateLayout = "2006-01-02"

// Options shape the output. NoLoc and NoDate suppress the location column/key
// and the date column/key everywhere.
type Options struct {
	NoLoc  bool
	NoDate bool

	// HasBands adds the proportionLower/proportionUpper columns.
	HasBands bool

	// Variants fixes the wide-form column order. When empty, the variants
	// observed in the series are used in sorted order.
	Variants []string
}

// WriteLongCSV emits one row per (location, variant, date).
func WriteLongCSV(w io.Writer, series []aggregate.Series, opt Options) error {
	cw := csv.NewWriter(w)

	header := []string{}
	if !opt.NoLoc {
		header = append(header, "location")
	}
	if !opt.NoDate {
		header = append(header, "date")
	}
	header = append(header, "variant", "proportion")
	if opt.HasBands {
		header = append(header, "proportionLower", "proportionUpper")
	}
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	for _, s := range series {
		row := []string{}
		if !opt.NoLoc {
			row = append(row, s.Location)
		}
		if !opt.NoDate {
			row = append(row, s.Date.Format(dateLayout))
		}
		row = append(row, s.Variant, formatProportion(s.Proportion))
		if opt.HasBands {
			row = append(row, formatProportion(s.Lower), formatProportion(s.Upper))
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	return pfx.Err(cw.Error())
}

// WriteWideCSV emits one row per (location, date) with one column per variant
// and metric. Point-estimate columns are unsuffixed; bounds carry the Lower
// and Upper suffixes.
func WriteWideCSV(w io.Writer, series []aggregate.Series, opt Options) error {
	variants := opt.Variants
	if len(variants) == 0 {
		variants = observedVariants(series)
	}

	header := []string{}
	if !opt.NoLoc {
		header = append(header, "location")
	}
	if !opt.NoDate {
		header = append(header, "date")
	}
	for _, v := range variants {
		header = append(header, v)
		if opt.HasBands {
			header = append(header, v+"Lower", v+"Upper")
		}
	}

	type rowKey struct {
		location string
		date     time.Time
	}

	cells := make(map[rowKey]map[string]aggregate.Series)
	var order []rowKey
	for _, s := range series {
		k := rowKey{s.Location, s.Date}
		if cells[k] == nil {
			cells[k] = make(map[string]aggregate.Series)
			order = append(order, k)
		}
		cells[k][s.Variant] = s
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].location != order[j].location {
			return order[i].location < order[j].location
		}
		return order[i].date.Before(order[j].date)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	for _, k := range order {
		row := []string{}
		if !opt.NoLoc {
			row = append(row, k.location)
		}
		if !opt.NoDate {
			row = append(row, k.date.Format(dateLayout))
		}
		for _, v := range variants {
			s, ok := cells[k][v]
			if !ok {
				s.Proportion, s.Lower, s.Upper = math.NaN(), math.NaN(), math.NaN()
			}
			row = append(row, formatProportion(s.Proportion))
			if opt.HasBands {
				row = append(row, formatProportion(s.Lower), formatProportion(s.Upper))
			}
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	return pfx.Err(cw.Error())
}

// timeseriesEntry is one per-date record of the JSON form. Not-a-number
// proportions serialize as null.
type timeseriesEntry struct {
	Date       string   `json:"date,omitempty"`
	Proportion *float64 `json:"proportion"`
}

// bandedEntry adds the bound keys. They are always present when bands are on,
// so a NaN bound serializes as null rather than vanishing.
type bandedEntry struct {
	timeseriesEntry
	ProportionLower *float64 `json:"proportionLower"`
	ProportionUpper *float64 `json:"proportionUpper"`
}

type variantSummary struct {
	TimeseriesSummary []interface{} `json:"timeseriesSummary"`
}

// WriteJSON nests location -> variant -> ordered per-date records. Under
// NoLoc the top level is the variant map itself.
func WriteJSON(w io.Writer, series []aggregate.Series, opt Options) error {
	byLocation := make(map[string]map[string]*variantSummary)
	for _, s := range series {
		variants := byLocation[s.Location]
		if variants == nil {
			variants = make(map[string]*variantSummary)
			byLocation[s.Location] = variants
		}
		summary := variants[s.Variant]
		if summary == nil {
			summary = &variantSummary{}
			variants[s.Variant] = summary
		}

		entry := timeseriesEntry{Proportion: jsonNumber(s.Proportion)}
		if !opt.NoDate {
			entry.Date = s.Date.Format(dateLayout)
		}
		if opt.HasBands {
			summary.TimeseriesSummary = append(summary.TimeseriesSummary, bandedEntry{
				timeseriesEntry: entry,
				ProportionLower: jsonNumber(s.Lower),
				ProportionUpper: jsonNumber(s.Upper),
			})
		} else {
			summary.TimeseriesSummary = append(summary.TimeseriesSummary, entry)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if opt.NoLoc {
		flat := make(map[string]*variantSummary)
		for _, variants := range byLocation {
			for v, summary := range variants {
				flat[v] = summary
			}
		}
		return pfx.Err(enc.Encode(flat))
	}

	return pfx.Err(enc.Encode(byLocation))
}

// jsonNumber boxes a proportion, mapping NaN to null. Encoding NaN directly
// would fail json.Marshal.
func jsonNumber(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func formatProportion(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func observedVariants(series []aggregate.Series) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range series {
		if !seen[s.Variant] {
			seen[s.Variant] = true
			out = append(out, s.Variant)
		}
	}
	sort.Strings(out)
	return out
}
