// Package cdlinear checks that Lasso and ElasticNet fitted by coordinate descent on
// an accelerator reach the same held-out accuracy as a host reference solver.
//
// # Layout
//
//   - accel: device-backed Lasso and ElasticNet (Gram-matrix coordinate descent)
//   - sklearn/linear_model: host reference Lasso and ElasticNet with duality-gap stopping
//   - device: the device abstraction and its goroutine-backed host backend
//   - datasets: synthetic regression data, float32/float64 containers and train/test split
//   - metrics: regression metrics including R²
//   - parity: scenario grid, runner and the accuracy margin check
//   - cmd/cdparity: command-line front end for the parity runner
//
// # Quick Start
//
//	split, err := datasets.SmallRegressionDataset(datasets.Float64)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m := accel.NewLasso(linear.WithAlpha(0.1))
//	if err := m.Fit(split.XTrain, split.YTrain); err != nil {
//	    log.Fatal(err)
//	}
//	r2, err := m.Score(split.XTest, split.YTest)
//
// # Running the comparison
//
// The unit tier runs with go test:
//
//	go test ./parity/...
//
// Larger tiers are selected with CDLINEAR_TIERS:
//
//	CDLINEAR_TIERS=unit,quality go test ./parity/ -run TestScenarios
//
// or through the command:
//
//	go run ./cmd/cdparity -tiers quality -chart scores.png
//
// # Error Handling
//
// Errors are built on github.com/cockroachdb/errors and carry stack traces. Typed
// errors such as NotFittedError, DimensionError and ValidationError live in
// pkg/errors. Non-fatal conditions (for example a solver stopping at max_iter) are
// reported as warnings through errors.Warn.
//
// # Logging
//
// pkg/log exposes a provider-based structured logger. SetupLogger installs a JSON
// slog handler; NewZerologProvider writes through zerolog.
package cdlinear
