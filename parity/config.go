// Package parity compares the device estimators in accel with the host reference
// estimators in sklearn/linear_model.
//
// A Scenario fixes the estimator family, input container, coordinate selection,
// element type, regularization strength and data shape. Running it generates a
// synthetic regression problem, splits it 80/20, fits both estimators with the same
// hyperparameters and scores them with R² on the held-out rows. The device passes
// when its score is at least the reference score minus Config.Margin.
//
// Scenarios are grouped in tiers by cost. Grid builds the full table, Select
// filters it and TiersFromEnv reads the tiers a test run should cover.
package parity

import (
	"os"
	"strconv"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// Environment variables read by ConfigFromEnv and TiersFromEnv.
const (
	EnvMargin    = "CDLINEAR_MARGIN"
	EnvSplitSeed = "CDLINEAR_SPLIT_SEED"
	EnvTiers     = "CDLINEAR_TIERS"
)

// DefaultMargin is how much lower than the reference R² the device R² may be.
const DefaultMargin = 0.07

// Config holds the harness settings shared by every scenario.
type Config struct {
	// Margin is the allowed R² shortfall of the device estimator.
	Margin float64
	// LargeScaleThreshold is the row count from which the reference fit is skipped.
	LargeScaleThreshold int
	TrainSize           float64
	SplitSeed           uint64
	DataSeed            uint64
	// Tol and MaxIter are handed to both estimators of a grid scenario.
	Tol     float64
	MaxIter int
}

// DefaultConfig returns margin 0.07, an 80/20 split with seed 0, tol 1e-10 and
// max_iter 1000, with the reference skipped from 500000 rows.
func DefaultConfig() Config {
	return Config{
		Margin:              DefaultMargin,
		LargeScaleThreshold: 500000,
		TrainSize:           0.8,
		Tol:                 1e-10,
		MaxIter:             1000,
	}
}

// Validate checks the harness settings.
func (c Config) Validate() error {
	switch {
	case c.Margin < 0:
		return errors.NewValidationError("margin", "must be non-negative", c.Margin)
	case c.LargeScaleThreshold <= 0:
		return errors.NewValidationError("large_scale_threshold", "must be positive", c.LargeScaleThreshold)
	case !(c.TrainSize > 0 && c.TrainSize < 1):
		return errors.NewValidationError("train_size", "must be in (0, 1)", c.TrainSize)
	case c.Tol < 0:
		return errors.NewValidationError("tol", "must be non-negative", c.Tol)
	case c.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", c.MaxIter)
	}
	return nil
}

// ConfigFromEnv starts from DefaultConfig and applies CDLINEAR_MARGIN and
// CDLINEAR_SPLIT_SEED when they are set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v, ok := os.LookupEnv(EnvMargin); ok && v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, errors.Wrapf(err, "parse %s", EnvMargin)
		}
		cfg.Margin = m
	}
	if v, ok := os.LookupEnv(EnvSplitSeed); ok && v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, errors.Wrapf(err, "parse %s", EnvSplitSeed)
		}
		cfg.SplitSeed = s
	}
	return cfg, cfg.Validate()
}
