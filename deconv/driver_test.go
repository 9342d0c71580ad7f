package deconv

import (
	"context"
	"math"
	"math/rand"
	"reflect"
	"testing"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/tallymut"
)

func mixtureTable() *tallymut.Table {
	d := day(2021, 7, 1)
	t := &tallymut.Table{
		Variants:    []string{"A", "B"},
		HasLocation: true,
	}

	obs := []tallymut.Row{
		{Sample: "s1", Location: "Zurich", Date: d, Mutation: "123T", Frac: 0.7, Indicators: []int{1, 0}, Weight: 1},
		{Sample: "s1", Location: "Zurich", Date: d, Mutation: "123T", Frac: 0.3, Indicators: []int{0, 1}, Weight: 1},
	}
	t.Rows = append(t.Rows, obs...)
	for _, r := range obs {
		t.Rows = append(t.Rows, tallymut.Complement(r))
	}

	return t
}

func globalWindow(variants ...string) []TimeWindow {
	return []TimeWindow{{Unbounded: true, Variants: variants}}
}

func testEngine() Engine {
	return Engine{Kernel: GaussianKernel{Bandwidth: 10}, Reg: NnlsReg{}}
}

func TestRunRejectsBootstrapWithConfint(t *testing.T) {
	e := testEngine()
	e.Confint = WaldConfint{}

	_, err := Run(context.Background(), mixtureTable(), []string{"Zurich"}, globalWindow("A", "B"), e, Options{Bootstrap: 100}, rand.New(rand.NewSource(1)))
	if err == nil || !lollipop.IsConfigError(err) {
		t.Fatalf("expected a ConfigError for bootstrap plus confint, got %v", err)
	}
}

func TestRunSkipsEmptySlices(t *testing.T) {
	results, err := Run(context.Background(), mixtureTable(), []string{"Geneva"}, globalWindow("A", "B"), testEngine(), Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("a location with no rows must contribute no results, got %d", len(results))
	}
}

func TestRunSkipsDegenerateSlices(t *testing.T) {
	// Restricting to variant A alone makes every signature all-zero or
	// all-active, so the slice is silently skipped.
	results, err := Run(context.Background(), mixtureTable(), []string{"Zurich"}, globalWindow("A"), testEngine(), Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from a degenerate slice, got %d", len(results))
	}
}

func TestRunPlain(t *testing.T) {
	results, err := Run(context.Background(), mixtureTable(), []string{"Zurich"}, globalWindow("A", "B"), testEngine(), Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 1 {
		t.Fatalf("expected one result table, got %d", len(results))
	}

	res := results[0]
	if res.Location != "Zurich" || res.Estimate != "" || res.Replicate != 0 {
		t.Errorf("unexpected tagging: %+v", res)
	}
	if !reflect.DeepEqual(res.Variants, []string{"A", "B", "undetermined"}) {
		t.Errorf("unexpected columns: %v", res.Variants)
	}
}

func TestRunConfintTagging(t *testing.T) {
	e := testEngine()
	e.Confint = WaldConfint{Level: 0.95}

	results, err := Run(context.Background(), mixtureTable(), []string{"Zurich"}, globalWindow("A", "B"), e, Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}

	labels := make(map[string]bool)
	for _, r := range results {
		labels[r.Estimate] = true
	}
	for _, want := range []string{"MSE", "Wald_lower", "Wald_upper"} {
		if !labels[want] {
			t.Errorf("missing estimate label %q in %v", want, labels)
		}
	}
}

func TestRunBootstrapDeterministic(t *testing.T) {
	run := func() []Result {
		results, err := Run(context.Background(), mixtureTable(), []string{"Zurich"}, globalWindow("A", "B"), testEngine(), Options{Bootstrap: 10, Workers: 1}, rand.New(rand.NewSource(7)))
		if err != nil {
			t.Fatal(err)
		}
		return results
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("identical seeds and inputs must yield bit-identical results")
	}
}

// A replicate is drawn once from the location's whole signature pool and
// shared by every window, so signatures never drawn leave their window empty
// for that replicate.
func TestRunBootstrapSharesReplicateAcrossWindows(t *testing.T) {
	table := mixtureTable()

	d2 := day(2021, 8, 15)
	later := tallymut.Row{Sample: "s2", Location: "Zurich", Date: d2, Mutation: "789C", Frac: 0.9, Indicators: []int{1, 0}, Weight: 1}
	table.Rows = append(table.Rows, later, tallymut.Complement(later))

	windows := []TimeWindow{
		{Start: day(2021, 7, 1), End: day(2021, 8, 1), Variants: []string{"A", "B"}},
		{Start: day(2021, 8, 1), Unbounded: true, Variants: []string{"A", "B"}},
	}

	results, err := Run(context.Background(), table, []string{"Zurich"}, windows, testEngine(), Options{Bootstrap: 100, Workers: 1}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}

	// Window-local resampling would always yield 2 results per replicate; a
	// shared pool of 4 signature groups leaves a window out now and then.
	if len(results) >= 200 {
		t.Errorf("expected some replicates to miss a window, got %d results from 100 replicates", len(results))
	}
	if len(results) <= 100 {
		t.Errorf("suspiciously few results: %d", len(results))
	}
}

// Date-less tables carry dummy per-sample dates; the kernel is neutralized so
// each sample is deconvolved on its own rows instead of pooling the slice.
func TestRunNoDateFitsPerSample(t *testing.T) {
	epoch := day(1999, 12, 1)
	table := &tallymut.Table{Variants: []string{"A", "B"}, HasLocation: true, NoDate: true}

	obs := []tallymut.Row{
		{Sample: "s1", Location: "Zurich", Date: epoch, Mutation: "123T", Frac: 0.8, Indicators: []int{1, 0}, Weight: 1},
		{Sample: "s2", Location: "Zurich", Date: epoch.AddDate(0, 0, 1), Mutation: "456A", Frac: 0.2, Indicators: []int{1, 0}, Weight: 1},
	}
	for _, r := range obs {
		table.Rows = append(table.Rows, r, tallymut.Complement(r))
	}

	windows := []TimeWindow{{Unbounded: true, Synthetic: true, Variants: []string{"A", "B"}}}

	results, err := Run(context.Background(), table, []string{"Zurich"}, windows, testEngine(), Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result table, got %d", len(results))
	}

	res := results[0]
	if len(res.Dates) != 2 {
		t.Fatalf("expected one fitted row per sample, got dates %v", res.Dates)
	}

	// A wide kernel would blend the two samples toward 0.5 each.
	if math.Abs(res.Values[0][0]-0.8) > 1e-6 {
		t.Errorf("first sample: proportion[A] = %v, want 0.8", res.Values[0][0])
	}
	if math.Abs(res.Values[1][0]-0.2) > 1e-6 {
		t.Errorf("second sample: proportion[A] = %v, want 0.2", res.Values[1][0])
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, mixtureTable(), []string{"Zurich"}, globalWindow("A", "B"), testEngine(), Options{Workers: 1}, rand.New(rand.NewSource(1)))
	if err == nil {
		t.Error("a cancelled context should abort the run")
	}
}

func TestRunWindowRestriction(t *testing.T) {
	table := mixtureTable()

	// A second month of data under a different mixture.
	d2 := day(2021, 8, 15)
	later := []tallymut.Row{
		{Sample: "s2", Location: "Zurich", Date: d2, Mutation: "789C", Frac: 0.9, Indicators: []int{1, 0}, Weight: 1},
		{Sample: "s2", Location: "Zurich", Date: d2, Mutation: "555G", Frac: 0.1, Indicators: []int{0, 1}, Weight: 1},
	}
	for _, r := range later {
		table.Rows = append(table.Rows, r, tallymut.Complement(r))
	}

	windows := []TimeWindow{
		{Start: day(2021, 7, 1), End: day(2021, 8, 1), Variants: []string{"A", "B"}},
		{Start: day(2021, 8, 1), Unbounded: true, Variants: []string{"A", "B"}},
	}

	results, err := Run(context.Background(), table, []string{"Zurich"}, windows, testEngine(), Options{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Fatalf("expected one result per window, got %d", len(results))
	}

	for _, res := range results {
		if len(res.Dates) != 1 {
			t.Errorf("window leakage: result covers dates %v", res.Dates)
		}
	}
}
