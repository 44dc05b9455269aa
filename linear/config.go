// Package linear holds what the host reference and the device estimators share:
// hyperparameters, input validation, centering and normalization, and prediction.
package linear

import (
	"fmt"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// Selection is the order in which coordinates are updated.
type Selection string

const (
	// Cyclic visits features 0..p-1 in order every sweep.
	Cyclic Selection = "cyclic"
	// Random draws features from a seeded generator.
	Random Selection = "random"
)

// ParseSelection accepts "cyclic" and "random".
func ParseSelection(s string) (Selection, error) {
	switch Selection(s) {
	case Cyclic, Random:
		return Selection(s), nil
	default:
		return "", errors.NewValidationError("selection", "must be 'cyclic' or 'random'", s)
	}
}

// Default tolerances of the two implementations.
const (
	ReferenceTol = 1e-4
	DeviceTol    = 1e-3
	DefaultIter  = 1000
)

// Config is the hyperparameter set handed to both estimator families.
type Config struct {
	Alpha        float64
	L1Ratio      float64
	FitIntercept bool
	Normalize    bool
	MaxIter      int
	Tol          float64
	Selection    Selection
	RandomState  uint64
}

// DefaultLassoConfig is alpha=1 with a pure L1 penalty.
func DefaultLassoConfig() Config {
	return Config{
		Alpha:        1.0,
		L1Ratio:      1.0,
		FitIntercept: true,
		MaxIter:      DefaultIter,
		Tol:          ReferenceTol,
		Selection:    Cyclic,
	}
}

// DefaultElasticNetConfig is alpha=1, l1_ratio=0.5.
func DefaultElasticNetConfig() Config {
	cfg := DefaultLassoConfig()
	cfg.L1Ratio = 0.5
	return cfg
}

// Apply returns a copy of c with opts applied in order.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate checks ranges. It does not reject alpha == 0; see CheckRegularization.
func (c Config) Validate() error {
	switch {
	case c.Alpha < 0:
		return errors.NewValidationError("alpha", "must be non-negative", c.Alpha)
	case c.L1Ratio < 0 || c.L1Ratio > 1:
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", c.L1Ratio)
	case c.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", c.MaxIter)
	case c.Tol < 0:
		return errors.NewValidationError("tol", "must be non-negative", c.Tol)
	}
	if _, err := ParseSelection(string(c.Selection)); err != nil {
		return err
	}
	return nil
}

// CheckRegularization warns when alpha is zero.
func (c Config) CheckRegularization(estimator string) {
	if c.Alpha == 0 {
		errors.Warn(errors.NewRegularizationWarning(estimator, c.Alpha,
			"coordinate descent without regularization converges poorly, use an ordinary least squares solver"))
	}
}

// Params returns the scikit-learn style parameter map.
func (c Config) Params() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         c.Alpha,
		"l1_ratio":      c.L1Ratio,
		"fit_intercept": c.FitIntercept,
		"normalize":     c.Normalize,
		"max_iter":      c.MaxIter,
		"tol":           c.Tol,
		"selection":     string(c.Selection),
		"random_state":  c.RandomState,
	}
}

// SetParams updates c from a parameter map. Unknown keys and wrong types are errors.
// JSON-decoded numbers (float64) are accepted for the integer parameters.
func (c *Config) SetParams(params map[string]interface{}) error {
	next := *c
	for key, value := range params {
		var ok bool
		switch key {
		case "alpha":
			next.Alpha, ok = value.(float64)
		case "l1_ratio":
			next.L1Ratio, ok = value.(float64)
		case "fit_intercept":
			next.FitIntercept, ok = value.(bool)
		case "normalize":
			next.Normalize, ok = value.(bool)
		case "tol":
			next.Tol, ok = value.(float64)
		case "max_iter":
			var n int64
			n, ok = asInt(value)
			next.MaxIter = int(n)
		case "random_state":
			var n int64
			n, ok = asInt(value)
			ok = ok && n >= 0
			next.RandomState = uint64(n)
		case "selection":
			var s string
			s, ok = value.(string)
			next.Selection = Selection(s)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// String formats c like a scikit-learn repr body.
func (c Config) String() string {
	return fmt.Sprintf("alpha=%g, l1_ratio=%g, fit_intercept=%t, normalize=%t, max_iter=%d, tol=%g, selection='%s'",
		c.Alpha, c.L1Ratio, c.FitIntercept, c.Normalize, c.MaxIter, c.Tol, c.Selection)
}
