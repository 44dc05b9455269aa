// Package linear_model はホスト上で実行する参照実装の Lasso / ElasticNet を提供します。
// アルゴリズムは scikit-learn の座標降下法（双対ギャップによる停止判定）に従います。
package linear_model

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/core/model"
	"github.com/YuminosukeSato/cdlinear/linear"
	"github.com/YuminosukeSato/cdlinear/metrics"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
)

// ElasticNet は L1 と L2 の混合ペナルティを持つ線形回帰
//
//	1/(2n)·||y - Xw||² + alpha·l1_ratio·||w||₁ + 0.5·alpha·(1 - l1_ratio)·||w||²
//
// scikit-learn の ElasticNet と互換。
type ElasticNet struct {
	state *model.StateManager // State management (composition instead of embedding)
	name  string
	cfg   linear.Config

	// Learned parameters
	coef_      []float64
	intercept_ float64
	nIter_     int
	dualGap_   float64
}

// NewElasticNet は新しいElasticNetモデルを作成（alpha=1, l1_ratio=0.5, tol=1e-4）
func NewElasticNet(opts ...linear.Option) *ElasticNet {
	return newElasticNet("ElasticNet", linear.DefaultElasticNetConfig(), opts)
}

func newElasticNet(name string, cfg linear.Config, opts []linear.Option) *ElasticNet {
	return &ElasticNet{
		state: model.NewStateManager(),
		name:  name,
		cfg:   cfg.Apply(opts...),
	}
}

// Fit はモデルを訓練データで学習
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
	prob, err := linear.Preprocess(X, y, e.cfg.FitIntercept, e.cfg.Normalize)
	if err != nil {
		return err
	}

	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, prob.X)
	}

	var rng *rand.Rand
	if e.cfg.Selection == linear.Random {
		rng = rand.New(rand.NewPCG(e.cfg.RandomState, e.cfg.RandomState))
	}

	l1Reg := e.cfg.Alpha * e.cfg.L1Ratio * float64(n)
	l2Reg := e.cfg.Alpha * (1 - e.cfg.L1Ratio) * float64(n)
	res := enetCoordinateDescent(cols, prob.Y.RawVector().Data, l1Reg, l2Reg, e.cfg.MaxIter, e.cfg.Tol, rng)

	if err := errors.CheckNumericalStability(op, res.coef, res.nIter); err != nil {
		return err
	}
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning(e.name, res.nIter,
			fmt.Sprintf("Objective did not converge. You might want to increase the number of iterations. Duality gap: %.3e, tolerance: %.3e",
				res.dualGap, res.tol)))
	}

	e.coef_, e.intercept_ = linear.Rescale(res.coef, prob.XOffset, prob.XScale, prob.YOffset)
	e.nIter_ = res.nIter
	e.dualGap_ = res.dualGap
	e.state.SetFitted(p, n)

	log.GetLoggerWithName("linear_model").Debug("fit completed",
		log.ModelNameKey, e.name,
		log.ImplementationKey, log.ImplementationReference,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.AlphaKey, e.cfg.Alpha,
		log.SelectionKey, string(e.cfg.Selection),
		log.IterationKey, res.nIter,
		log.DualGapKey, res.dualGap,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict は X·coef + intercept を n×1 行列で返す
func (e *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := e.state.RequireFeatures(e.name, "Predict", cols); err != nil {
		return nil, err
	}
	return linear.PredictLinear(X, e.coef_, e.intercept_), nil
}

// Score はモデルの決定係数（R²）を計算
func (e *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := e.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Coef は学習された重み係数のコピーを返す
func (e *ElasticNet) Coef() []float64 {
	if e.coef_ == nil {
		return nil
	}
	return append([]float64(nil), e.coef_...)
}

// Intercept は学習された切片を返す
func (e *ElasticNet) Intercept() float64 {
	return e.intercept_
}

// NIter は実行したスイープ数
func (e *ElasticNet) NIter() int {
	return e.nIter_
}

// DualGap は最終的な双対ギャップ（1/(2n) でスケールする前の値）
func (e *ElasticNet) DualGap() float64 {
	return e.dualGap_
}

// Config は現在のハイパーパラメータ
func (e *ElasticNet) Config() linear.Config {
	return e.cfg
}

// IsFitted returns whether the model has been fitted
func (e *ElasticNet) IsFitted() bool {
	return e.state.IsFitted()
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (e *ElasticNet) GetParams(deep bool) map[string]interface{} {
	return e.cfg.Params()
}

// SetParams sets the model's hyperparameters (scikit-learn compatible).
// 学習済みの係数は変更しない。
func (e *ElasticNet) SetParams(params map[string]interface{}) error {
	return e.cfg.SetParams(params)
}

// ExportWeights はモデルの重みをエクスポート
func (e *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	if err := e.state.RequireFitted(e.name, "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := e.state.GetDimensions()
	return model.NewLinearWeights(e.name, log.ImplementationReference, e.coef_, e.intercept_,
		e.GetParams(true),
		map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"n_iter":     e.nIter_,
			"dual_gap":   e.dualGap_,
		}), nil
}

// ImportWeights はモデルの重みをインポート（チェックサムを検証）
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
	if v, ok := weights.Metadata["dual_gap"].(float64); ok {
		e.dualGap_ = v
	}
	e.state.SetFitted(len(e.coef_), metaInt(weights.Metadata, "n_samples"))
	return nil
}

// metaInt は JSON 経由 (float64) とメモリ上 (int) の両方を受け付ける
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

// Clone は同じハイパーパラメータの未学習モデルを作成
func (e *ElasticNet) Clone() *ElasticNet {
	return newElasticNet(e.name, e.cfg, nil)
}

// String returns the string representation of the model
func (e *ElasticNet) String() string {
	if !e.state.IsFitted() {
		return fmt.Sprintf("%s(%s)", e.name, e.cfg)
	}
	nFeatures, _ := e.state.GetDimensions()
	return fmt.Sprintf("%s(%s, n_features=%d, n_iter=%d, fitted=true)", e.name, e.cfg, nFeatures, e.nIter_)
}

// Lasso は L1 ペナルティのみの線形回帰（l1_ratio = 1 の ElasticNet）
//
//	1/(2n)·||y - Xw||² + alpha·||w||₁
type Lasso struct {
	*ElasticNet
}

// NewLasso は新しいLassoモデルを作成（alpha=1, tol=1e-4）
func NewLasso(opts ...linear.Option) *Lasso {
	e := newElasticNet("Lasso", linear.DefaultLassoConfig(), opts)
	e.cfg.L1Ratio = 1
	return &Lasso{ElasticNet: e}
}

// GetParams は l1_ratio を含まない
func (l *Lasso) GetParams(deep bool) map[string]interface{} {
	params := l.ElasticNet.GetParams(deep)
	delete(params, "l1_ratio")
	return params
}

// SetParams は l1_ratio を受け付けない
func (l *Lasso) SetParams(params map[string]interface{}) error {
	if v, ok := params["l1_ratio"]; ok {
		return errors.NewValidationError("l1_ratio", "Lasso has no l1_ratio parameter", v)
	}
	return l.ElasticNet.SetParams(params)
}

// ExportWeights は l1_ratio を含まないハイパーパラメータでエクスポート
func (l *Lasso) ExportWeights() (*model.ModelWeights, error) {
	w, err := l.ElasticNet.ExportWeights()
	if err != nil {
		return nil, err
	}
	delete(w.Hyperparameters, "l1_ratio")
	return w, nil
}

// Clone は同じハイパーパラメータの未学習モデルを作成
func (l *Lasso) Clone() *Lasso {
	return &Lasso{ElasticNet: l.ElasticNet.Clone()}
}
