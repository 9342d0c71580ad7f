package deconv

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/tallymut"
)

// PointEstimate labels the fitted table of a confidence-interval run.
const PointEstimate = "MSE"

// Options tune a deconvolution run.
type Options struct {
	// Bootstrap is the replicate count; values <= 1 disable resampling.
	Bootstrap int

	// Workers bounds the concurrent slice fits. Defaults to GOMAXPROCS.
	Workers int
}

// Result is one fitted table for a (location, window, replicate) slice.
// Estimate is empty for plain runs; under a confidence estimator it is
// "MSE", "<Name>_lower", or "<Name>_upper".
type Result struct {
	Location  string
	Replicate int
	Estimate  string
	Dates     []time.Time
	Variants  []string
	Values    [][]float64
}

// task is the restricted design matrix for one slice.
type task struct {
	location  string
	replicate int
	x         [][]float64
	y         []float64
	dates     []time.Time
	weights   []float64
	variants  []string
}

// Run deconvolves every (location, window, replicate) slice with non-empty,
// non-degenerate rows. A bootstrap replicate is drawn once per location from
// the location's whole signature pool and shared by all of its windows, so a
// window whose signatures were never drawn drops out of that replicate.
// Replicates are drawn from rng sequentially before any fitting starts, so
// identical seeds reproduce identical output regardless of worker count.
// Slices with nothing to fit are skipped silently.
func Run(ctx context.Context, t *tallymut.Table, locations []string, windows []TimeWindow, engine Engine, opt Options, rng *rand.Rand) ([]Result, error) {
	if opt.Bootstrap > 1 && engine.Confint != nil {
		return nil, lollipop.Configf("either use bootstrapping or a confidence estimator, not both (bootstrap: %d, confint: %s)", opt.Bootstrap, engine.Confint.Name())
	}

	if t.NoDate {
		// Date-less rows carry dummy per-sample dates a day apart; a unit box
		// keeps each sample's fit on its own rows.
		engine.Kernel = BoxKernel{Bandwidth: 1}
	}

	var tasks []task
	for _, loc := range locations {
		locRows := locationRows(t, loc)
		if len(locRows) == 0 {
			continue
		}

		if opt.Bootstrap > 1 {
			for b := 0; b < opt.Bootstrap; b++ {
				replicate := ResampleSignatures(locRows, rng)
				for _, win := range windows {
					slice := restrictSlice(t, replicate, win)
					if len(slice.rows) == 0 {
						continue
					}
					tasks = append(tasks, buildTask(loc, b, slice, true))
				}
			}
		} else {
			for _, win := range windows {
				slice := restrictSlice(t, locRows, win)
				if len(slice.rows) == 0 {
					continue
				}
				tasks = append(tasks, buildTask(loc, 0, slice, false))
			}
		}
	}

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		results []Result
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, tk := range tasks {
		tk := tk
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			fitted, err := engine.DeconvAll(tk.x, tk.y, tk.dates, tk.weights, tk.variants)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			results = append(results, tagResults(tk, fitted, engine.Confint)...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// restrictedSlice is the rows of one (location, window) pair, restricted to
// the window's variants plus the undetermined column.
type restrictedSlice struct {
	rows     []tallymut.Row
	cols     []int
	variants []string
}

// locationRows selects one location's rows.
func locationRows(t *tallymut.Table, location string) []tallymut.Row {
	var out []tallymut.Row
	for _, r := range t.Rows {
		if r.Location == location {
			out = append(out, r)
		}
	}
	return out
}

// restrictSlice filters rows to the window's date range and variants, dropping
// rows whose restricted signature carries no signal (all-zero or all-active).
func restrictSlice(t *tallymut.Table, rows []tallymut.Row, win TimeWindow) restrictedSlice {
	out := restrictedSlice{}

	for _, v := range win.Variants {
		for i, have := range t.Variants {
			if have == v {
				out.cols = append(out.cols, i)
				out.variants = append(out.variants, v)
				break
			}
		}
	}
	if len(out.cols) == 0 {
		return out
	}
	out.variants = append(out.variants, "undetermined")

	restricted := make([]int, len(out.cols))
	for _, r := range rows {
		if !win.Contains(r.Date) {
			continue
		}

		for j, ci := range out.cols {
			restricted[j] = r.Indicators[ci]
		}
		if !tallymut.Informative(restricted) {
			continue
		}

		out.rows = append(out.rows, r)
	}

	return out
}

func buildTask(location string, replicate int, slice restrictedSlice, weighted bool) task {
	rows := slice.rows
	tk := task{
		location:  location,
		replicate: replicate,
		variants:  slice.variants,
		x:         make([][]float64, len(rows)),
		y:         make([]float64, len(rows)),
		dates:     make([]time.Time, len(rows)),
	}
	if weighted {
		tk.weights = make([]float64, len(rows))
	}

	for i, r := range rows {
		row := make([]float64, len(slice.cols)+1)
		for j, ci := range slice.cols {
			row[j] = float64(r.Indicators[ci])
		}
		row[len(slice.cols)] = float64(r.Undetermined)

		tk.x[i] = row
		tk.y[i] = r.Frac
		tk.dates[i] = r.Date
		if weighted {
			tk.weights[i] = r.Weight
		}
	}

	return tk
}

func tagResults(tk task, fitted *SliceResult, confint Confint) []Result {
	base := Result{
		Location:  tk.location,
		Replicate: tk.replicate,
		Dates:     fitted.Dates,
		Variants:  fitted.Variants,
		Values:    fitted.Fitted,
	}

	if confint == nil {
		return []Result{base}
	}

	base.Estimate = PointEstimate
	lower := Result{
		Location: tk.location,
		Estimate: confint.Name() + "_lower",
		Dates:    fitted.Dates,
		Variants: fitted.Variants,
		Values:   fitted.Lower,
	}
	upper := Result{
		Location: tk.location,
		Estimate: confint.Name() + "_upper",
		Dates:    fitted.Dates,
		Variants: fitted.Variants,
		Values:   fitted.Upper,
	}

	return []Result{base, lower, upper}
}
