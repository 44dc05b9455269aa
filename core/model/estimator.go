// Package model は推定器が共有するインターフェースと学習状態の管理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の行列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer は決定係数 R² を計算できるモデル
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Estimator は scikit-learn 互換のハイパーパラメータ操作
type Estimator interface {
	GetParams(deep bool) map[string]interface{}
	SetParams(params map[string]interface{}) error
	IsFitted() bool
}

// Regressor は学習・予測・スコアを一通り備えた回帰モデル。
// デバイス実装と参照実装の両方がこれを満たす。
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	Regressor
	// Coef は元のスケールでの係数を返す
	Coef() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}

// IterativeModel は反復ソルバーで学習するモデル
type IterativeModel interface {
	// NIter は実際に実行したスイープ数を返す
	NIter() int
}

// WeightExporter は重みをエクスポート可能なモデルのインターフェース
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
