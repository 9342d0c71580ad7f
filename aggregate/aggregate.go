// Package aggregate reshapes per-slice deconvolution results into the final
// per-(location, variant, date) summary series: melting fitted tables into
// typed long records, combining bootstrap replicates or confidence bands, and
// sorting deterministically.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	gstat "gonum.org/v1/gonum/stat"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/deconv"
)

// MetricKind classifies a melted value.
type MetricKind int

const (
	Point MetricKind = iota
	LowerBound
	UpperBound
)

// Record is one melted value, keyed by (location, variant, date).
type Record struct {
	Location  string
	Variant   string
	Date      time.Time
	Kind      MetricKind
	Replicate int
	Value     float64
}

// Series is one final output row.
type Series struct {
	Location   string
	Variant    string
	Date       time.Time
	Proportion float64
	Lower      float64
	Upper      float64
	HasBands   bool
}

// Melt reshapes fitted tables from variant columns into long records. The
// estimate label of each result decides the metric kind.
func Melt(results []deconv.Result) ([]Record, error) {
	var out []Record
	for _, res := range results {
		kind, err := kindOf(res.Estimate)
		if err != nil {
			return nil, err
		}

		for di, date := range res.Dates {
			for vi, variant := range res.Variants {
				out = append(out, Record{
					Location:  res.Location,
					Variant:   variant,
					Date:      date,
					Kind:      kind,
					Replicate: res.Replicate,
					Value:     res.Values[di][vi],
				})
			}
		}
	}

	return out, nil
}

func kindOf(estimate string) (MetricKind, error) {
	switch {
	case estimate == "" || estimate == deconv.PointEstimate:
		return Point, nil
	case strings.HasSuffix(estimate, "_lower"):
		return LowerBound, nil
	case strings.HasSuffix(estimate, "_upper"):
		return UpperBound, nil
	}
	return 0, lollipop.Dataf("unrecognized estimate label %q", estimate)
}

// Options select the combination mode. Bootstrap and Confint are mutually
// exclusive upstream.
type Options struct {
	Bootstrap int
	Confint   bool

	// LogitScale marks confidence bounds that live on the logit scale; they
	// are mapped back through the logistic function.
	LogitScale bool
}

type seriesKey struct {
	location string
	variant  string
	date     time.Time
}

// Combine merges melted records into one series row per (location, variant,
// date): bootstrap replicates collapse to their mean with empirical 2.5th and
// 97.5th percentile bounds, confidence-band records pivot into
// proportion/lower/upper, and plain runs pass through.
func Combine(recs []Record, opt Options) []Series {
	switch {
	case opt.Bootstrap > 1:
		return combineBootstrap(recs)
	case opt.Confint:
		return combineConfint(recs, opt.LogitScale)
	}

	out := make([]Series, 0, len(recs))
	for _, r := range recs {
		out = append(out, Series{
			Location:   r.Location,
			Variant:    r.Variant,
			Date:       r.Date,
			Proportion: zeroNaN(r.Value),
		})
	}

	sortSeries(out)
	return out
}

func combineBootstrap(recs []Record) []Series {
	values := make(map[seriesKey][]float64)
	for _, r := range recs {
		k := seriesKey{r.Location, r.Variant, r.Date}
		values[k] = append(values[k], zeroNaN(r.Value))
	}

	out := make([]Series, 0, len(values))
	for k, v := range values {
		// Replicates arrive in completion order; summing in sorted order keeps
		// the mean bit-identical across runs.
		sort.Float64s(v)

		mean, err := stats.Mean(stats.Float64Data(v))
		if err != nil {
			continue
		}

		out = append(out, Series{
			Location:   k.location,
			Variant:    k.variant,
			Date:       k.date,
			Proportion: mean,
			Lower:      gstat.Quantile(0.025, gstat.LinInterp, v, nil),
			Upper:      gstat.Quantile(0.975, gstat.LinInterp, v, nil),
			HasBands:   true,
		})
	}

	sortSeries(out)
	return out
}

func combineConfint(recs []Record, logitScale bool) []Series {
	type bands struct {
		point, lower, upper float64
	}

	pivot := make(map[seriesKey]*bands)
	for _, r := range recs {
		k := seriesKey{r.Location, r.Variant, r.Date}
		b := pivot[k]
		if b == nil {
			b = &bands{point: math.NaN(), lower: math.NaN(), upper: math.NaN()}
			pivot[k] = b
		}
		switch r.Kind {
		case Point:
			b.point = r.Value
		case LowerBound:
			b.lower = r.Value
		case UpperBound:
			b.upper = r.Value
		}
	}

	out := make([]Series, 0, len(pivot))
	for k, b := range pivot {
		lower, upper := b.lower, b.upper
		if logitScale {
			lower = Logistic(lower)
			upper = Logistic(upper)
		}
		out = append(out, Series{
			Location:   k.location,
			Variant:    k.variant,
			Date:       k.date,
			Proportion: b.point,
			Lower:      lower,
			Upper:      upper,
			HasBands:   true,
		})
	}

	sortSeries(out)
	return out
}

// Logistic maps a logit-scale value back to a proportion, clamping the
// pre-image so extreme bounds cannot overflow.
func Logistic(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	if x > 500 {
		x = 500
	} else if x < -500 {
		x = -500
	}
	return 1 / (1 + math.Exp(-x))
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func sortSeries(s []Series) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Location != s[j].Location {
			return s[i].Location < s[j].Location
		}
		if s[i].Variant != s[j].Variant {
			return s[i].Variant < s[j].Variant
		}
		return s[i].Date.Before(s[j].Date)
	})
}
