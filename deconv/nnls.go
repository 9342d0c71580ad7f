package deconv

import (
	"math"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// nnls solves min ||A x - b|| subject to x >= 0 with the Lawson-Hanson active
// set method.
func nnls(a *mat.Dense, b []float64) ([]float64, error) {
	m, n := a.Dims()

	x := make([]float64, n)
	passive := make([]bool, n)

	// w = A^T (b - A x), the negative gradient.
	residual := make([]float64, m)
	w := make([]float64, n)

	bv := mat.NewVecDense(m, b)

	maxOuter := 3 * n
	for outer := 0; outer < maxOuter; outer++ {
		// Residual for the current iterate.
		xv := mat.NewVecDense(n, x)
		rv := mat.NewVecDense(m, residual)
		rv.MulVec(a, xv)
		rv.SubVec(bv, rv)

		// Gradient over the active (zero) set.
		best, bestIdx := 0.0, -1
		for j := 0; j < n; j++ {
			if passive[j] {
				continue
			}
			col := mat.Col(nil, j, a)
			w[j] = mat.Dot(mat.NewVecDense(m, col), rv)
			if w[j] > best+1e-12 {
				best, bestIdx = w[j], j
			}
		}
		if bestIdx < 0 {
			break
		}
		passive[bestIdx] = true

		// Inner loop: solve the unconstrained problem on the passive set and
		// back off along the segment to the previous iterate while any
		// passive coefficient would turn negative.
		for {
			z, err := solvePassive(a, b, passive)
			if err != nil {
				return nil, err
			}

			alpha, feasible := 1.0, true
			for j := 0; j < n; j++ {
				if passive[j] && z[j] <= 0 {
					feasible = false
					if step := x[j] / (x[j] - z[j]); step < alpha {
						alpha = step
					}
				}
			}

			if feasible {
				copy(x, z)
				break
			}

			for j := 0; j < n; j++ {
				if passive[j] {
					x[j] += alpha * (z[j] - x[j])
					if x[j] < 1e-12 {
						x[j] = 0
						passive[j] = false
					}
				}
			}
		}
	}

	for j := range x {
		if x[j] < 0 || math.IsNaN(x[j]) {
			x[j] = 0
		}
	}

	return x, nil
}

// solvePassive solves the least-squares problem restricted to the passive
// columns, returning a full-width vector with zeros elsewhere.
func solvePassive(a *mat.Dense, b []float64, passive []bool) ([]float64, error) {
	m, n := a.Dims()

	cols := make([]int, 0, n)
	for j := 0; j < n; j++ {
		if passive[j] {
			cols = append(cols, j)
		}
	}

	z := make([]float64, n)
	if len(cols) == 0 {
		return z, nil
	}

	sub := mat.NewDense(m, len(cols), nil)
	for k, j := range cols {
		sub.SetCol(k, mat.Col(nil, j, a))
	}

	var qr mat.QR
	qr.Factorize(sub)

	sol := mat.NewDense(len(cols), 1, nil)
	if err := qr.SolveTo(sol, false, mat.NewDense(m, 1, b)); err != nil {
		// A poorly conditioned passive set still yields a usable iterate;
		// anything else is fatal.
		if _, ok := err.(mat.Condition); !ok {
			return nil, pfx.Err(err)
		}
	}

	for k, j := range cols {
		z[j] = sol.At(k, 0)
	}

	return z, nil
}
