// Package deconv drives the kernel-deconvolution of preprocessed tally rows:
// it resolves locations, plans time windows, optionally resamples signatures
// for bootstrapping, and runs the regression engine over every
// (location, window, replicate) slice.
package deconv

import "math"

// Kernel weighs observations by their distance in days from the target date.
type Kernel interface {
	Weight(days float64) float64
}

// GaussianKernel is the default smoothing kernel.
type GaussianKernel struct {
	Bandwidth float64
}

func (k GaussianKernel) Weight(days float64) float64 {
	z := days / k.Bandwidth
	return math.Exp(-0.5 * z * z)
}

// BoxKernel weighs all observations within half a bandwidth of the target
// date equally and ignores the rest.
type BoxKernel struct {
	Bandwidth float64
}

func (k BoxKernel) Weight(days float64) float64 {
	if math.Abs(days) <= k.Bandwidth/2 {
		return 1
	}
	return 0
}
