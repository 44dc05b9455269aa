package linear

// Option configures an estimator's Config.
type Option func(*Config)

// WithAlpha sets the overall regularization strength.
func WithAlpha(alpha float64) Option {
	return func(c *Config) {
		c.Alpha = alpha
	}
}

// WithL1Ratio sets the L1 share of the penalty. 1 is Lasso, 0 is ridge.
func WithL1Ratio(ratio float64) Option {
	return func(c *Config) {
		c.L1Ratio = ratio
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(c *Config) {
		c.FitIntercept = fit
	}
}

// WithNormalize scales centered columns to unit L2 norm before fitting.
// Ignored when the intercept is not fitted.
func WithNormalize(normalize bool) Option {
	return func(c *Config) {
		c.Normalize = normalize
	}
}

// WithMaxIter sets the maximum number of coordinate descent sweeps
func WithMaxIter(n int) Option {
	return func(c *Config) {
		c.MaxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(c *Config) {
		c.Tol = tol
	}
}

// WithSelection sets the coordinate visiting order.
func WithSelection(s Selection) Option {
	return func(c *Config) {
		c.Selection = s
	}
}

// WithRandomState seeds random coordinate selection.
func WithRandomState(seed uint64) Option {
	return func(c *Config) {
		c.RandomState = seed
	}
}

// WithConfig replaces every field with cfg.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}
