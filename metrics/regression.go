// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// checkPair は長さが等しく空でないことを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// columns は n×1 の行列 2 つをベクトルに変換する
func columns(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return asVec(yTrue, rTrue), asVec(yPred, rPred), nil
}

func asVec(m mat.Matrix, n int) *mat.VecDense {
	if v, ok := m.(*mat.VecDense); ok {
		return v
	}
	if d, ok := m.(*mat.Dense); ok {
		return mat.VecDenseCopyOf(d.ColView(0))
	}
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return sumSquaredResiduals(yTrue, yPred) / float64(n), nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

func sumSquaredResiduals(yTrue, yPred *mat.VecDense) float64 {
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff)
}

// R2Score は決定係数（R²）を計算する。値域は (-∞, 1]。
//
// yTrue が定数で全変動が 0 の場合、予測が完全一致なら 1、そうでなければ 0 を返し
// UndefinedMetricWarning を発生させる（scikit-learn の force_finite と同じ）。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yMean
		tss += d * d
	}
	rss := sumSquaredResiduals(yTrue, yPred)

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "constant y_true (total sum of squares is zero)", result))
		return result, nil
	}
	if err := errors.CheckScalar("r2_score", rss, 0); err != nil {
		return 0, err
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// R2ScoreMatrix は n×1 行列に対する R2Score
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, n)
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		truth[i] = yTrue.AtVec(i)
		diff[i] = truth[i] - yPred.AtVec(i)
	}
	_, varYTrue := stat.PopMeanVariance(truth, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)

	if varYTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}
	return 1 - varDiff/varYTrue, nil
}

// Report は 1 つの予測に対する回帰指標の組
type Report struct {
	R2                float64
	MSE               float64
	RMSE              float64
	MAE               float64
	ExplainedVariance float64
}

// Evaluate は n×1 行列の yTrue と yPred から Report を計算する。
// yTrue が定数の場合、ExplainedVariance は R2 と同じ規約（完全一致で 1、それ以外 0）に従う。
func Evaluate(yTrue, yPred mat.Matrix) (Report, error) {
	t, p, err := columns("Evaluate", yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	var r Report
	if r.R2, err = R2Score(t, p); err != nil {
		return Report{}, err
	}
	if r.MSE, err = MSE(t, p); err != nil {
		return Report{}, err
	}
	r.RMSE = math.Sqrt(r.MSE)
	if r.MAE, err = MAE(t, p); err != nil {
		return Report{}, err
	}
	if r.ExplainedVariance, err = ExplainedVarianceScore(t, p); err != nil {
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			return Report{}, err
		}
		r.ExplainedVariance = r.R2
	}
	return r, nil
}
