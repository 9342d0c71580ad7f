package deconv

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regressor fits per-variant proportions from a weighted design matrix. The
// returned coefficients are normalized to sum to one when any signal is
// recovered.
type Regressor interface {
	Fit(x *mat.Dense, y, weights []float64) ([]float64, error)
}

// NnlsReg fits nonnegative least squares.
type NnlsReg struct{}

func (NnlsReg) Fit(x *mat.Dense, y, weights []float64) ([]float64, error) {
	aw, bw := applyWeights(x, y, weights)

	beta, err := nnls(aw, bw)
	if err != nil {
		return nil, err
	}

	normalize(beta)
	return beta, nil
}

// RobustReg fits nonnegative least squares under a soft-L1 loss via iterative
// reweighting, which tempers the influence of outlier tallies.
type RobustReg struct {
	// FScale is the inlier residual scale. Defaults to 0.01.
	FScale float64
	// MaxIter bounds the reweighting iterations. Defaults to 20.
	MaxIter int
}

func (r RobustReg) Fit(x *mat.Dense, y, weights []float64) ([]float64, error) {
	fScale := r.FScale
	if fScale <= 0 {
		fScale = 0.01
	}
	maxIter := r.MaxIter
	if maxIter <= 0 {
		maxIter = 20
	}

	m, _ := x.Dims()

	robust := make([]float64, m)
	combined := make([]float64, m)
	for i := range robust {
		robust[i] = 1
	}

	var beta []float64
	for iter := 0; iter < maxIter; iter++ {
		for i := range combined {
			combined[i] = robust[i]
			if weights != nil {
				combined[i] *= weights[i]
			}
		}

		aw, bw := applyWeights(x, y, combined)
		next, err := nnls(aw, bw)
		if err != nil {
			return nil, err
		}

		if beta != nil && floats.Distance(beta, next, 2) < 1e-8 {
			beta = next
			break
		}
		beta = next

		// Soft-L1 weights: rho'(z) = 1/sqrt(1+z) with z = (res/f_scale)^2.
		for i := 0; i < m; i++ {
			res := -y[i]
			for j, v := range beta {
				res += x.At(i, j) * v
			}
			z := res / fScale
			robust[i] = 1 / math.Sqrt(1+z*z)
		}
	}

	normalize(beta)
	return beta, nil
}

// applyWeights scales each row of the system by the square root of its
// weight, so that ordinary least squares on the result solves the weighted
// problem. Nil weights mean an unweighted fit.
func applyWeights(x *mat.Dense, y, weights []float64) (*mat.Dense, []float64) {
	m, n := x.Dims()

	aw := mat.NewDense(m, n, nil)
	bw := make([]float64, m)
	for i := 0; i < m; i++ {
		s := 1.0
		if weights != nil {
			s = math.Sqrt(weights[i])
		}
		for j := 0; j < n; j++ {
			aw.Set(i, j, s*x.At(i, j))
		}
		bw[i] = s * y[i]
	}

	return aw, bw
}

func normalize(beta []float64) {
	sum := floats.Sum(beta)
	if sum > 0 {
		for i := range beta {
			beta[i] /= sum
		}
	}
}
