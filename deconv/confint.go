package deconv

import (
	"math"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Confint produces lower/upper confidence bounds for fitted proportions. The
// bounds may live on a transformed (logit) scale; aggregation maps them back.
type Confint interface {
	Name() string
	LogitScale() bool
	Bands(x *mat.Dense, y, weights, beta []float64) (lower, upper []float64, err error)
}

// WaldConfint derives parametric bounds from the weighted least-squares
// covariance of the fit.
type WaldConfint struct {
	// Level is the two-sided confidence level. Defaults to 0.95.
	Level float64
	// Scale is "linear" or "logit".
	Scale string
}

func (WaldConfint) Name() string { return "Wald" }

func (w WaldConfint) LogitScale() bool { return w.Scale == "logit" }

func (w WaldConfint) Bands(x *mat.Dense, y, weights, beta []float64) ([]float64, []float64, error) {
	m, n := x.Dims()

	level := w.Level
	if level <= 0 || level >= 1 {
		level = 0.95
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-level)/2)

	// Weighted residual variance.
	var wSum, rss float64
	for i := 0; i < m; i++ {
		wi := 1.0
		if weights != nil {
			wi = weights[i]
		}
		res := -y[i]
		for j, v := range beta {
			res += x.At(i, j) * v
		}
		wSum += wi
		rss += wi * res * res
	}
	dof := wSum - float64(n)
	if dof < 1 {
		dof = 1
	}
	sigma2 := rss / dof

	// Covariance via the weighted normal matrix.
	xtwx := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for k := j; k < n; k++ {
			var s float64
			for i := 0; i < m; i++ {
				wi := 1.0
				if weights != nil {
					wi = weights[i]
				}
				s += wi * x.At(i, j) * x.At(i, k)
			}
			xtwx.Set(j, k, s)
			xtwx.Set(k, j, s)
		}
	}
	// Tiny ridge keeps degenerate slices invertible.
	for j := 0; j < n; j++ {
		xtwx.Set(j, j, xtwx.At(j, j)+1e-10)
	}

	var inv mat.Dense
	if err := inv.Inverse(xtwx); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, nil, pfx.Err(err)
		}
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	for j := 0; j < n; j++ {
		se := math.Sqrt(math.Max(sigma2*inv.At(j, j), 0))

		if w.LogitScale() {
			// Delta method on the logit transform; bounds stay on the logit
			// scale and are mapped back during aggregation.
			b := math.Min(math.Max(beta[j], 1e-10), 1-1e-10)
			center := math.Log(b / (1 - b))
			seLogit := se / (b * (1 - b))
			lower[j] = center - z*seLogit
			upper[j] = center + z*seLogit
			continue
		}

		lower[j] = beta[j] - z*se
		upper[j] = beta[j] + z*se
	}

	return lower, upper, nil
}
