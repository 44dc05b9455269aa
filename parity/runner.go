package parity

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/accel"
	"github.com/YuminosukeSato/cdlinear/core/model"
	"github.com/YuminosukeSato/cdlinear/datasets"
	"github.com/YuminosukeSato/cdlinear/device"
	"github.com/YuminosukeSato/cdlinear/linear"
	"github.com/YuminosukeSato/cdlinear/metrics"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
	linear_model "github.com/YuminosukeSato/cdlinear/sklearn/linear_model"
)

// Result holds the scores of one run.
type Result struct {
	Name     string
	Family   Family
	Tier     Tier
	TestRows int

	DeviceR2      float64
	DeviceMetrics metrics.Report
	DeviceTime    time.Duration

	// HasReference is false when the reference fit was skipped for size.
	HasReference     bool
	ReferenceR2      float64
	ReferenceMetrics metrics.Report
	ReferenceTime    time.Duration
}

// MarginError reports a device score below the reference score minus the margin.
type MarginError struct {
	Scenario    string
	DeviceR2    float64
	ReferenceR2 float64
	Margin      float64
}

func (e *MarginError) Error() string {
	return fmt.Sprintf("parity: %s: device R² %.6f is below reference R² %.6f - margin %.2f",
		e.Scenario, e.DeviceR2, e.ReferenceR2, e.Margin)
}

// Compare returns a *MarginError unless DeviceR2 >= ReferenceR2 - margin. Results
// without a reference always pass.
func (r *Result) Compare(margin float64) error {
	if !r.HasReference || r.DeviceR2 >= r.ReferenceR2-margin {
		return nil
	}
	return errors.WithStack(&MarginError{
		Scenario:    r.Name,
		DeviceR2:    r.DeviceR2,
		ReferenceR2: r.ReferenceR2,
		Margin:      margin,
	})
}

// Runner executes scenarios with one Config.
type Runner struct {
	cfg    Config
	device device.Context
	logger log.Logger
}

// NewRunner returns a Runner using cfg.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg, logger: log.GetLoggerWithName("parity")}
}

// WithDevice makes the device estimators share ctx instead of opening their own.
func (r *Runner) WithDevice(ctx device.Context) *Runner {
	r.device = ctx
	return r
}

// Config returns the runner settings.
func (r *Runner) Config() Config { return r.cfg }

type regressor interface {
	model.Fitter
	model.Predictor
}

func (r *Runner) estimators(family Family, opts []linear.Option) (dev, ref regressor) {
	if family == ElasticNet {
		return accel.NewElasticNet(opts...).WithContext(r.device), linear_model.NewElasticNet(opts...)
	}
	return accel.NewLasso(opts...).WithContext(r.device), linear_model.NewLasso(opts...)
}

// Run generates the scenario's dataset and scores both estimators on it. It does
// not apply the margin; see Result.Compare and Check.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	ds, err := datasets.MakeRegression(sc.Shape.Rows, sc.Shape.Cols, sc.Shape.Informative,
		datasets.WithSeed(r.cfg.DataSeed), datasets.WithDType(sc.DType))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: generate", sc.Name())
	}
	split, err := datasets.TrainTestSplit(ds.X, ds.Y, r.cfg.TrainSize, r.cfg.SplitSeed)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: split", sc.Name())
	}

	res := &Result{
		Name:         sc.Name(),
		Family:       sc.Family,
		Tier:         sc.Tier(),
		HasReference: sc.Shape.Rows < r.cfg.LargeScaleThreshold,
	}
	xTrain, xTest := sc.Container.Wrap(split.XTrain), sc.Container.Wrap(split.XTest)
	if err := r.score(ctx, res, sc.Family, sc.Options(r.cfg), xTrain, split.YTrain, xTest, split.YTest); err != nil {
		return nil, errors.Wrap(err, sc.Name())
	}

	r.logger.Info("scenario completed",
		log.ScenarioKey, res.Name,
		log.TierKey, res.Tier.String(),
		log.ModelNameKey, string(sc.Family),
		log.ContainerKey, sc.Container.String(),
		log.PrecisionKey, sc.DType.String(),
		log.SelectionKey, string(sc.Selection),
		log.AlphaKey, sc.Alpha,
		log.SamplesKey, sc.Shape.Rows,
		log.FeaturesKey, sc.Shape.Cols,
		log.InformativeKey, sc.Shape.Informative,
		log.DeviceR2Key, res.DeviceR2,
		log.ReferenceR2Key, res.ReferenceR2,
		log.DeviceRMSEKey, res.DeviceMetrics.RMSE,
		log.ReferenceRMSEKey, res.ReferenceMetrics.RMSE,
		"device_ms", res.DeviceTime.Milliseconds(),
		"reference_ms", res.ReferenceTime.Milliseconds(),
	)
	return res, nil
}

// RunDefault fits both estimators of family with their library defaults on the
// small fixed dataset in dtype.
func (r *Runner) RunDefault(ctx context.Context, family Family, dtype datasets.DType) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s/default/%s", family, dtype)

	split, err := datasets.SmallRegressionDataset(dtype)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	res := &Result{Name: name, Family: family, Tier: Unit, HasReference: true}
	if err := r.score(ctx, res, family, nil, split.XTrain, split.YTrain, split.XTest, split.YTest); err != nil {
		return nil, errors.Wrap(err, name)
	}

	r.logger.Info("default scenario completed",
		log.ScenarioKey, name,
		log.ModelNameKey, string(family),
		log.PrecisionKey, dtype.String(),
		log.DeviceR2Key, res.DeviceR2,
		log.ReferenceR2Key, res.ReferenceR2,
		log.DeviceRMSEKey, res.DeviceMetrics.RMSE,
		log.ReferenceRMSEKey, res.ReferenceMetrics.RMSE,
	)
	return res, nil
}

// Check runs sc and applies the configured margin.
func (r *Runner) Check(ctx context.Context, sc Scenario) (*Result, error) {
	res, err := r.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	return res, res.Compare(r.cfg.Margin)
}

func (r *Runner) score(ctx context.Context, res *Result, family Family, opts []linear.Option,
	xTrain, yTrain, xTest, yTest mat.Matrix) error {
	dev, ref := r.estimators(family, opts)
	res.TestRows, _ = xTest.Dims()

	var err error
	if res.DeviceMetrics, res.DeviceTime, err = fitScore(dev, xTrain, yTrain, xTest, yTest); err != nil {
		return errors.Wrap(err, "device")
	}
	res.DeviceR2 = res.DeviceMetrics.R2
	if !res.HasReference {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.ReferenceMetrics, res.ReferenceTime, err = fitScore(ref, xTrain, yTrain, xTest, yTest); err != nil {
		return errors.Wrap(err, "reference")
	}
	res.ReferenceR2 = res.ReferenceMetrics.R2
	return nil
}

// fitScore fits m and scores its predictions on the test rows.
func fitScore(m regressor, xTrain, yTrain, xTest, yTest mat.Matrix) (metrics.Report, time.Duration, error) {
	start := time.Now()
	if err := m.Fit(xTrain, yTrain); err != nil {
		return metrics.Report{}, 0, err
	}
	pred, err := m.Predict(xTest)
	if err != nil {
		return metrics.Report{}, 0, err
	}
	elapsed := time.Since(start)

	nTest, _ := xTest.Dims()
	if rows, cols := pred.Dims(); rows != nTest || cols != 1 {
		return metrics.Report{}, 0, errors.NewDimensionError("Predict", nTest, rows, 0)
	}
	report, err := metrics.Evaluate(yTest, pred)
	return report, elapsed, err
}

// Run executes sc with DefaultConfig.
func Run(ctx context.Context, sc Scenario) (*Result, error) {
	return NewRunner(DefaultConfig()).Run(ctx, sc)
}

// RunDefault executes the default-configuration scenario with DefaultConfig.
func RunDefault(ctx context.Context, family Family, dtype datasets.DType) (*Result, error) {
	return NewRunner(DefaultConfig()).RunDefault(ctx, family, dtype)
}
