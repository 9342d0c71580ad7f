package deconv

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/vconfig"
)

// Engine bundles the kernel, the regression method, and the optional
// confidence estimator. It is stateless and safe to call concurrently with
// distinct inputs.
type Engine struct {
	Kernel  Kernel
	Reg     Regressor
	Confint Confint // nil means no confidence estimation
}

// NewEngine builds an engine from the deconvolution parameter document.
func NewEngine(cfg *vconfig.DeconvConfig) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}

	bandwidth := cfg.KernelParams.Bandwidth
	if bandwidth <= 0 {
		bandwidth = 10
	}

	e := Engine{}

	switch cfg.Kernel {
	case "", "gaussian":
		e.Kernel = GaussianKernel{Bandwidth: bandwidth}
	case "box":
		e.Kernel = BoxKernel{Bandwidth: bandwidth}
	default:
		return Engine{}, lollipop.Configf("unknown kernel %q", cfg.Kernel)
	}

	switch cfg.Regressor {
	case "", "nnls":
		e.Reg = NnlsReg{}
	case "robust":
		e.Reg = RobustReg{FScale: cfg.RegressorParams.FScale, MaxIter: cfg.RegressorParams.MaxIter}
	default:
		return Engine{}, lollipop.Configf("unknown regressor %q", cfg.Regressor)
	}

	switch cfg.Confint {
	case "", "null":
		// No confidence estimation.
	case "wald":
		e.Confint = WaldConfint{Level: cfg.ConfintParams.Level, Scale: cfg.ConfintParams.Scale}
	default:
		return Engine{}, lollipop.Configf("unknown confint %q", cfg.Confint)
	}

	return e, nil
}

// SliceResult is one fitted-proportion table: one row per distinct date, one
// column per variant. Lower and Upper are present only under a confidence
// estimator and share the table's shape.
type SliceResult struct {
	Dates    []time.Time
	Variants []string
	Fitted   [][]float64
	Lower    [][]float64
	Upper    [][]float64
}

// DeconvAll fits proportions for every distinct date of a slice. For each
// target date the observations are weighted by the kernel (times the optional
// resampling weights) and the regression is solved on the weighted system. A
// date whose kernel mass vanishes yields a NaN row.
func (e Engine) DeconvAll(x [][]float64, y []float64, dates []time.Time, weights []float64, variants []string) (*SliceResult, error) {
	m := len(x)
	n := len(variants)

	xd := mat.NewDense(m, n, nil)
	for i, row := range x {
		xd.SetRow(i, row)
	}

	distinct := distinctDates(dates)

	out := &SliceResult{
		Dates:    distinct,
		Variants: variants,
	}
	if e.Confint != nil {
		out.Lower = make([][]float64, 0, len(distinct))
		out.Upper = make([][]float64, 0, len(distinct))
	}

	kw := make([]float64, m)
	for _, target := range distinct {
		var mass float64
		for i := range kw {
			kw[i] = e.Kernel.Weight(dates[i].Sub(target).Hours() / 24)
			if weights != nil {
				kw[i] *= weights[i]
			}
			mass += kw[i]
		}

		if mass <= 0 {
			out.Fitted = append(out.Fitted, nanRow(n))
			if e.Confint != nil {
				out.Lower = append(out.Lower, nanRow(n))
				out.Upper = append(out.Upper, nanRow(n))
			}
			continue
		}

		beta, err := e.Reg.Fit(xd, y, kw)
		if err != nil {
			return nil, err
		}
		out.Fitted = append(out.Fitted, beta)

		if e.Confint != nil {
			lower, upper, err := e.Confint.Bands(xd, y, kw, beta)
			if err != nil {
				return nil, err
			}
			out.Lower = append(out.Lower, lower)
			out.Upper = append(out.Upper, upper)
		}
	}

	return out, nil
}

func distinctDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}
