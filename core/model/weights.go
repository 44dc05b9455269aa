package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// WeightsVersion はエクスポート形式のバージョン
const WeightsVersion = "1.0.0"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（Lasso, ElasticNet）
	ModelType string `json:"model_type"`

	// Implementation は "reference" または "device"
	Implementation string `json:"implementation"`

	// Version はエクスポート形式のバージョン（互換性チェック用）
	Version string `json:"version"`

	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`

	// Hyperparameters は GetParams の結果
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は n_iter や dual_gap などの学習時の統計
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	IsFitted bool   `json:"is_fitted"`
	Checksum string `json:"checksum,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "failed to decode model weights")
	}
	return nil
}

// ComputeChecksum は係数と切片から sha256 を計算する。
// %.15g で書式化するので JSON の往復で値が変わらない。
func (mw *ModelWeights) ComputeChecksum() string {
	h := sha256.New()
	for _, c := range mw.Coefficients {
		fmt.Fprintf(h, "%.15g,", c)
	}
	fmt.Fprintf(h, "%.15g", mw.Intercept)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Seal はチェックサムを設定する
func (mw *ModelWeights) Seal() {
	mw.Checksum = mw.ComputeChecksum()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate(modelType string) error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if modelType != "" && mw.ModelType != modelType {
		return errors.NewValidationError("model_type", "does not match estimator "+modelType, mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if mw.Checksum != "" && mw.Checksum != mw.ComputeChecksum() {
		return errors.NewValidationError("checksum", "does not match coefficients", mw.Checksum)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Implementation:  mw.Implementation,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		IsFitted:        mw.IsFitted,
		Checksum:        mw.Checksum,
		Coefficients:    make([]float64, len(mw.Coefficients)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	copy(clone.Coefficients, mw.Coefficients)
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// NewLinearWeights は学習済み線形モデルの ModelWeights を作成し、チェックサムを設定する
func NewLinearWeights(modelType, implementation string, coef []float64, intercept float64, params, metadata map[string]interface{}) *ModelWeights {
	mw := &ModelWeights{
		ModelType:       modelType,
		Implementation:  implementation,
		Version:         WeightsVersion,
		Coefficients:    append([]float64(nil), coef...),
		Intercept:       intercept,
		Hyperparameters: params,
		Metadata:        metadata,
		IsFitted:        true,
	}
	mw.Seal()
	return mw
}
