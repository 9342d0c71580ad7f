package vconfig

import (
	"io/ioutil"

	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"

	lollipop "github.com/gordonkoehn/LolliPop"
)

// Known estimator kinds. Unknown kinds are rejected at load time rather than
// silently falling back to a default.
var (
	knownKernels    = map[string]bool{"": true, "gaussian": true, "box": true}
	knownRegressors = map[string]bool{"": true, "nnls": true, "robust": true}
	knownConfints   = map[string]bool{"": true, "null": true, "wald": true}
)

// KernelParams tunes the smoothing kernel.
type KernelParams struct {
	// Bandwidth is in days. Defaults to 10 when unset.
	Bandwidth float64 `yaml:"bandwidth"`
}

// RegressorParams tunes the regression method.
type RegressorParams struct {
	// FScale is the soft-L1 inlier scale for the robust regressor.
	FScale float64 `yaml:"f_scale"`
	// MaxIter bounds the robust reweighting iterations.
	MaxIter int `yaml:"maxiter"`
}

// ConfintParams tunes the parametric confidence estimator.
type ConfintParams struct {
	// Level is the two-sided confidence level, defaulting to 0.95.
	Level float64 `yaml:"level"`
	// Scale is "linear" or "logit". Logit-scale bounds are mapped back
	// through the logistic function during aggregation.
	Scale string `yaml:"scale"`
}

// DeconvConfig holds the parameters of the deconvolution engine.
type DeconvConfig struct {
	Bootstrap       int             `yaml:"bootstrap"`
	Kernel          string          `yaml:"kernel"`
	KernelParams    KernelParams    `yaml:"kernel_params"`
	Regressor       string          `yaml:"regressor"`
	RegressorParams RegressorParams `yaml:"regressor_params"`
	Confint         string          `yaml:"confint"`
	ConfintParams   ConfintParams   `yaml:"confint_params"`
}

// HasConfint reports whether a non-dummy confidence estimator is configured.
func (c *DeconvConfig) HasConfint() bool {
	return c.Confint != "" && c.Confint != "null"
}

// Validate rejects unknown estimator kinds and the mutually exclusive
// combination of bootstrapping with a confidence estimator.
func (c *DeconvConfig) Validate() error {
	if !knownKernels[c.Kernel] {
		return lollipop.Configf("unknown kernel %q", c.Kernel)
	}
	if !knownRegressors[c.Regressor] {
		return lollipop.Configf("unknown regressor %q", c.Regressor)
	}
	if !knownConfints[c.Confint] {
		return lollipop.Configf("unknown confint %q", c.Confint)
	}
	if c.HasConfint() && c.Bootstrap > 1 {
		return lollipop.Configf("either use bootstrapping or a confidence estimator, not both (bootstrap: %d, confint: %q)", c.Bootstrap, c.Confint)
	}

	return nil
}

// LoadDeconv reads and validates a deconvolution parameter document.
func LoadDeconv(path string) (*DeconvConfig, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cfg := &DeconvConfig{}
	if err := yaml.Unmarshal(bts, cfg); err != nil {
		return nil, pfx.Err(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
