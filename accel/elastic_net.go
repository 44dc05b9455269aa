// Package accel provides Lasso and ElasticNet fitted on a compute device.
//
// The estimators take the same linear.Option values as the host reference in
// sklearn/linear_model, but solve the covariance formulation: X and y are uploaded,
// centered and normalized on the device, the Gram matrix XᵀX and Xᵀy are formed
// once and coordinate descent runs over them. The default tolerance is
// linear.DeviceTol and the stopping rule is the relative coefficient change only,
// without a duality gap check.
//
//	m := accel.NewLasso(linear.WithAlpha(0.1)).WithPrecision(device.Float32)
//	if err := m.Fit(XTrain, yTrain); err != nil {
//	    return err
//	}
//	pred, err := m.Predict(XTest)
package accel

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/core/model"
	"github.com/YuminosukeSato/cdlinear/datasets"
	"github.com/YuminosukeSato/cdlinear/device"
	"github.com/YuminosukeSato/cdlinear/linear"
	"github.com/YuminosukeSato/cdlinear/metrics"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
)

// ElasticNet is a device-fitted linear regression with a mixed L1/L2 penalty
//
//	1/(2n)·||y - Xw||² + alpha·l1_ratio·||w||₁ + 0.5·alpha·(1 - l1_ratio)·||w||²
type ElasticNet struct {
	state *model.StateManager
	name  string
	cfg   linear.Config

	ctx       device.Context
	precision *device.Precision

	coef_      []float64
	intercept_ float64
	nIter_     int
	fitPrec    device.Precision
}

// NewElasticNet creates an ElasticNet with alpha=1, l1_ratio=0.5 and tol=1e-3.
func NewElasticNet(opts ...linear.Option) *ElasticNet {
	return newElasticNet("ElasticNet", deviceDefaults(linear.DefaultElasticNetConfig()), opts)
}

func deviceDefaults(cfg linear.Config) linear.Config {
	cfg.Tol = linear.DeviceTol
	return cfg
}

func newElasticNet(name string, cfg linear.Config, opts []linear.Option) *ElasticNet {
	return &ElasticNet{
		state: model.NewStateManager(),
		name:  name,
		cfg:   cfg.Apply(opts...),
	}
}

// WithContext runs Fit and Predict on ctx. The caller keeps ownership of ctx;
// buffers the estimator allocates in it are released before each call returns.
func (e *ElasticNet) WithContext(ctx device.Context) *ElasticNet {
	e.ctx = ctx
	return e
}

// WithPrecision fixes the buffer precision. Without it the precision follows the
// input: float32 for datasets.Float32 containers, float64 otherwise.
func (e *ElasticNet) WithPrecision(p device.Precision) *ElasticNet {
	e.precision = &p
	return e
}

func (e *ElasticNet) precisionFor(X mat.Matrix) device.Precision {
	if e.precision != nil {
		return *e.precision
	}
	if datasets.DTypeOf(X) == datasets.Float32 {
		return device.Float32
	}
	return device.Float64
}

// Fit trains the model on X (n×p) and y (n×1).
func (e *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	op := e.name + ".Fit"
	defer errors.Recover(&err, op)

	if err := e.cfg.Validate(); err != nil {
		return err
	}
	n, p, err := linear.CheckInput(op, X, y)
	if err != nil {
		return err
	}
	e.cfg.CheckRegularization(e.name)

	start := time.Now()
	prec := e.precisionFor(X)
	s, err := openSession(e.ctx)
	if err != nil {
		return err
	}
	defer s.close()

	xb, err := s.upload(X, prec)
	if err != nil {
		return errors.Wrap(err, op)
	}
	yb, err := s.upload(y, prec)
	if err != nil {
		return errors.Wrap(err, op)
	}

	xOffset := make([]float64, p)
	xScale := make([]float64, p)
	for j := range xScale {
		xScale[j] = 1
	}
	var yOffset float64
	if e.cfg.FitIntercept {
		if xOffset, err = s.ctx.CenterColumns(xb); err != nil {
			return errors.Wrap(err, op)
		}
		yMean, err := s.ctx.CenterColumns(yb)
		if err != nil {
			return errors.Wrap(err, op)
		}
		yOffset = yMean[0]

		if e.cfg.Normalize {
			norms, err := s.ctx.ColumnNorms(xb)
			if err != nil {
				return errors.Wrap(err, op)
			}
			for j, v := range norms {
				if v == 0 {
					norms[j] = 1
				}
			}
			if err := s.ctx.ScaleColumns(xb, norms); err != nil {
				return errors.Wrap(err, op)
			}
			xScale = norms
		}
	}

	gram, err := s.keep(s.ctx.Gram(xb))
	if err != nil {
		return errors.Wrap(err, op)
	}
	xty, err := s.keep(s.ctx.MatTVec(xb, yb))
	if err != nil {
		return errors.Wrap(err, op)
	}

	res, err := s.ctx.CDSolve(gram, xty, device.CDParams{
		L1Reg:   e.cfg.Alpha * e.cfg.L1Ratio * float64(n),
		L2Reg:   e.cfg.Alpha * (1 - e.cfg.L1Ratio) * float64(n),
		MaxIter: e.cfg.MaxIter,
		Tol:     e.cfg.Tol,
		Random:  e.cfg.Selection == linear.Random,
		Seed:    e.cfg.RandomState,
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := errors.CheckNumericalStability(op, res.Coef, res.NIter); err != nil {
		return err
	}
	if !res.Converged {
		errors.Warn(errors.NewConvergenceWarning(e.name, res.NIter,
			fmt.Sprintf("largest coefficient update still above tol=%.3e", e.cfg.Tol)))
	}

	e.coef_, e.intercept_ = linear.Rescale(res.Coef, xOffset, xScale, yOffset)
	e.nIter_ = res.NIter
	e.fitPrec = prec
	e.state.SetFitted(p, n)

	dev := s.ctx.Device()
	log.GetLoggerWithName("accel").Debug("fit completed",
		log.ModelNameKey, e.name,
		log.ImplementationKey, log.ImplementationDevice,
		log.OperationKey, log.OperationFit,
		log.DeviceKey, dev.Name,
		log.PrecisionKey, prec.String(),
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.AlphaKey, e.cfg.Alpha,
		log.SelectionKey, string(e.cfg.Selection),
		log.IterationKey, res.NIter,
		log.MemoryBytesKey, s.ctx.Allocated(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict computes X·coef + intercept on the device and returns an n×1 matrix.
func (e *ElasticNet) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	op := e.name + ".Predict"
	defer errors.Recover(&err, op)

	_, cols := X.Dims()
	if err := e.state.RequireFeatures(e.name, "Predict", cols); err != nil {
		return nil, err
	}

	s, err := openSession(e.ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	prec := e.precisionFor(X)
	xb, err := s.upload(X, prec)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	wb, err := s.upload(mat.NewVecDense(cols, e.coef_), prec)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	out, err := s.keep(s.ctx.MatVec(xb, wb))
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := s.ctx.AddScalar(out, e.intercept_); err != nil {
		return nil, errors.Wrap(err, op)
	}
	pred, err := device.DownloadMatrix(out)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return pred, nil
}

// Score returns the R² of Predict(X) against y.
func (e *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := e.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Coef returns a copy of the coefficients in the original feature space.
func (e *ElasticNet) Coef() []float64 {
	if e.coef_ == nil {
		return nil
	}
	return append([]float64(nil), e.coef_...)
}

func (e *ElasticNet) Intercept() float64 { return e.intercept_ }

// NIter is the number of sweeps the solver ran.
func (e *ElasticNet) NIter() int { return e.nIter_ }

// Precision is the buffer precision of the last Fit.
func (e *ElasticNet) Precision() device.Precision { return e.fitPrec }

func (e *ElasticNet) Config() linear.Config { return e.cfg }

func (e *ElasticNet) IsFitted() bool { return e.state.IsFitted() }

// GetParams returns the hyperparameters in scikit-learn naming.
func (e *ElasticNet) GetParams(deep bool) map[string]interface{} {
	return e.cfg.Params()
}

// SetParams updates hyperparameters. Fitted coefficients are left alone.
func (e *ElasticNet) SetParams(params map[string]interface{}) error {
	return e.cfg.SetParams(params)
}

// ExportWeights captures the fitted model with a checksum.
func (e *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	if err := e.state.RequireFitted(e.name, "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := e.state.GetDimensions()
	return model.NewLinearWeights(e.name, log.ImplementationDevice, e.coef_, e.intercept_,
		e.GetParams(true),
		map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"n_iter":     e.nIter_,
			"precision":  e.fitPrec.String(),
		}), nil
}

// ImportWeights restores a model exported by either implementation.
func (e *ElasticNet) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError(e.name+".ImportWeights", "weights cannot be nil")
	}
	if err := weights.Validate(e.name); err != nil {
		return err
	}
	if err := e.SetParams(weights.Hyperparameters); err != nil {
		return err
	}

	e.coef_ = append([]float64(nil), weights.Coefficients...)
	e.intercept_ = weights.Intercept
	e.nIter_ = metaInt(weights.Metadata, "n_iter")
	e.fitPrec = device.Float64
	if weights.Metadata["precision"] == device.Float32.String() {
		e.fitPrec = device.Float32
	}
	e.state.SetFitted(len(e.coef_), metaInt(weights.Metadata, "n_samples"))
	return nil
}

func metaInt(meta map[string]interface{}, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone returns an unfitted copy with the same hyperparameters and device settings.
func (e *ElasticNet) Clone() *ElasticNet {
	c := newElasticNet(e.name, e.cfg, nil)
	c.ctx = e.ctx
	c.precision = e.precision
	return c
}

func (e *ElasticNet) String() string {
	if !e.state.IsFitted() {
		return fmt.Sprintf("%s(%s, device=true)", e.name, e.cfg)
	}
	nFeatures, _ := e.state.GetDimensions()
	return fmt.Sprintf("%s(%s, device=true, precision=%s, n_features=%d, n_iter=%d, fitted=true)",
		e.name, e.cfg, e.fitPrec, nFeatures, e.nIter_)
}

// Lasso is the device-fitted ElasticNet with l1_ratio fixed at 1
//
//	1/(2n)·||y - Xw||² + alpha·||w||₁
type Lasso struct {
	*ElasticNet
}

// NewLasso creates a Lasso with alpha=1 and tol=1e-3.
func NewLasso(opts ...linear.Option) *Lasso {
	e := newElasticNet("Lasso", deviceDefaults(linear.DefaultLassoConfig()), opts)
	e.cfg.L1Ratio = 1
	return &Lasso{ElasticNet: e}
}

func (l *Lasso) WithContext(ctx device.Context) *Lasso {
	l.ElasticNet.WithContext(ctx)
	return l
}

func (l *Lasso) WithPrecision(p device.Precision) *Lasso {
	l.ElasticNet.WithPrecision(p)
	return l
}

// GetParams omits l1_ratio.
func (l *Lasso) GetParams(deep bool) map[string]interface{} {
	params := l.ElasticNet.GetParams(deep)
	delete(params, "l1_ratio")
	return params
}

// SetParams rejects l1_ratio.
func (l *Lasso) SetParams(params map[string]interface{}) error {
	if v, ok := params["l1_ratio"]; ok {
		return errors.NewValidationError("l1_ratio", "Lasso has no l1_ratio parameter", v)
	}
	return l.ElasticNet.SetParams(params)
}

func (l *Lasso) ExportWeights() (*model.ModelWeights, error) {
	w, err := l.ElasticNet.ExportWeights()
	if err != nil {
		return nil, err
	}
	delete(w.Hyperparameters, "l1_ratio")
	return w, nil
}

func (l *Lasso) Clone() *Lasso {
	return &Lasso{ElasticNet: l.ElasticNet.Clone()}
}

var (
	_ model.LinearModel    = (*ElasticNet)(nil)
	_ model.LinearModel    = (*Lasso)(nil)
	_ model.IterativeModel = (*ElasticNet)(nil)
	_ model.WeightExporter = (*ElasticNet)(nil)
)
