package aggregate

import (
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/gordonkoehn/LolliPop/deconv"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestMeltReshapesTables(t *testing.T) {
	results := []deconv.Result{{
		Location: "Zurich",
		Dates:    []time.Time{day(2021, 7, 1), day(2021, 7, 2)},
		Variants: []string{"Alpha", "undetermined"},
		Values: [][]float64{
			{0.6, 0.4},
			{0.8, 0.2},
		},
	}}

	recs, err := Melt(results)
	if err != nil {
		t.Fatal(err)
	}

	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}

	r := recs[3]
	if r.Location != "Zurich" || r.Variant != "undetermined" || !r.Date.Equal(day(2021, 7, 2)) || r.Value != 0.2 || r.Kind != Point {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestMeltClassifiesEstimates(t *testing.T) {
	mk := func(estimate string) deconv.Result {
		return deconv.Result{
			Location: "Zurich",
			Estimate: estimate,
			Dates:    []time.Time{day(2021, 7, 1)},
			Variants: []string{"Alpha"},
			Values:   [][]float64{{0.5}},
		}
	}

	recs, err := Melt([]deconv.Result{mk("MSE"), mk("Wald_lower"), mk("Wald_upper")})
	if err != nil {
		t.Fatal(err)
	}

	if recs[0].Kind != Point || recs[1].Kind != LowerBound || recs[2].Kind != UpperBound {
		t.Errorf("unexpected kinds: %+v", recs)
	}

	if _, err := Melt([]deconv.Result{mk("garbage")}); err == nil {
		t.Error("expected an error for an unrecognized estimate label")
	}
}

func TestCombineBootstrap(t *testing.T) {
	var recs []Record
	for rep, v := range []float64{0.2, 0.4, 0.6, 0.8} {
		recs = append(recs, Record{
			Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1),
			Kind: Point, Replicate: rep, Value: v,
		})
	}

	series := Combine(recs, Options{Bootstrap: 4})
	if len(series) != 1 {
		t.Fatalf("expected one series row, got %d", len(series))
	}

	s := series[0]
	if math.Abs(s.Proportion-0.5) > 1e-12 {
		t.Errorf("mean = %v, want 0.5", s.Proportion)
	}
	if !s.HasBands {
		t.Error("bootstrap output must carry bands")
	}
	if s.Lower < 0.2 || s.Lower > s.Proportion || s.Upper > 0.8 || s.Upper < s.Proportion {
		t.Errorf("bounds %v..%v do not straddle the mean %v within the sample range", s.Lower, s.Upper, s.Proportion)
	}
}

// Replicates are collected in goroutine-completion order, so the mean must not
// depend on the arrival order of bitwise-identical values.
func TestCombineBootstrapMeanOrderInvariant(t *testing.T) {
	combine := func(order []float64) []Series {
		var recs []Record
		for i, v := range order {
			recs = append(recs, Record{
				Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1),
				Kind: Point, Replicate: i, Value: v,
			})
		}
		return Combine(recs, Options{Bootstrap: len(order)})
	}

	// 0.1+0.2+0.3 and 0.3+0.2+0.1 differ in the last bit when summed naively.
	a := combine([]float64{0.1, 0.2, 0.3})
	b := combine([]float64{0.3, 0.2, 0.1})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("replicate order changed the aggregate: %+v vs %+v", a, b)
	}
}

func TestCombineBootstrapZeroesNaN(t *testing.T) {
	recs := []Record{
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1), Kind: Point, Replicate: 0, Value: math.NaN()},
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1), Kind: Point, Replicate: 1, Value: 0.4},
	}

	series := Combine(recs, Options{Bootstrap: 2})
	if got, want := series[0].Proportion, 0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("NaN replicate should count as zero: mean = %v, want %v", got, want)
	}
}

func TestCombineConfintPivot(t *testing.T) {
	key := Record{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1)}

	point, lower, upper := key, key, key
	point.Kind, point.Value = Point, 0.5
	lower.Kind, lower.Value = LowerBound, 0.4
	upper.Kind, upper.Value = UpperBound, 0.6

	series := Combine([]Record{point, lower, upper}, Options{Confint: true})
	if len(series) != 1 {
		t.Fatalf("expected one series row, got %d", len(series))
	}

	s := series[0]
	if s.Proportion != 0.5 || s.Lower != 0.4 || s.Upper != 0.6 || !s.HasBands {
		t.Errorf("unexpected pivot: %+v", s)
	}
}

func TestCombineConfintLogitScale(t *testing.T) {
	key := Record{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1)}

	point, lower, upper := key, key, key
	point.Kind, point.Value = Point, 0.5
	lower.Kind, lower.Value = LowerBound, 0 // logit 0 -> 0.5
	upper.Kind, upper.Value = UpperBound, 1e9

	series := Combine([]Record{point, lower, upper}, Options{Confint: true, LogitScale: true})

	s := series[0]
	if math.Abs(s.Lower-0.5) > 1e-12 {
		t.Errorf("logistic(0) should be 0.5, got %v", s.Lower)
	}
	if s.Upper <= 0.99 || s.Upper > 1 || math.IsInf(s.Upper, 0) || math.IsNaN(s.Upper) {
		t.Errorf("an extreme logit bound must clamp to a finite proportion near 1, got %v", s.Upper)
	}
}

func TestCombinePlainPassThrough(t *testing.T) {
	recs := []Record{
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1), Kind: Point, Value: math.NaN()},
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 2), Kind: Point, Value: 0.4},
	}

	series := Combine(recs, Options{})
	if len(series) != 2 {
		t.Fatalf("expected 2 series rows, got %d", len(series))
	}
	if series[0].Proportion != 0 {
		t.Errorf("NaN should pass through as zero, got %v", series[0].Proportion)
	}
	if series[0].HasBands || series[1].HasBands {
		t.Error("plain runs carry no bands")
	}
}

func TestCombineSortsDeterministically(t *testing.T) {
	recs := []Record{
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 2), Kind: Point, Value: 0.1},
		{Location: "Basel", Variant: "Delta", Date: day(2021, 7, 1), Kind: Point, Value: 0.2},
		{Location: "Basel", Variant: "Alpha", Date: day(2021, 7, 1), Kind: Point, Value: 0.3},
		{Location: "Zurich", Variant: "Alpha", Date: day(2021, 7, 1), Kind: Point, Value: 0.4},
	}

	series := Combine(recs, Options{})

	sorted := sort.SliceIsSorted(series, func(i, j int) bool {
		a, b := series[i], series[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Date.Before(b.Date)
	})
	if !sorted {
		t.Errorf("series not sorted by (location, variant, date): %+v", series)
	}
	if series[0].Location != "Basel" || series[0].Variant != "Alpha" {
		t.Errorf("unexpected first row: %+v", series[0])
	}
}
