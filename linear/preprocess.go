package linear

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/core/parallel"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/preprocessing"
)

// parallelThreshold is the row count above which host loops fan out.
const parallelThreshold = 1000

// CheckInput validates a training pair: non-empty X, y of shape n×1, finite values.
func CheckInput(op string, X, y mat.Matrix) (n, p int, err error) {
	n, p = X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return 0, 0, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, n, p, 0); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y, n, 1, 0); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

// Problem is a centered (and optionally normalized) copy of the training data.
type Problem struct {
	X       *mat.Dense
	Y       *mat.VecDense
	XOffset []float64
	XScale  []float64
	YOffset float64
}

// Preprocess centers X and y when fitIntercept is set. With normalize, centered
// columns are divided by their L2 norm, sqrt(n * var). Offsets are zero and scales
// one for whatever was not applied.
func Preprocess(X, y mat.Matrix, fitIntercept, normalize bool) (*Problem, error) {
	n, p := X.Dims()
	prob := &Problem{
		X:       mat.DenseCopyOf(X),
		Y:       mat.NewVecDense(n, mat.Col(nil, 0, y)),
		XOffset: make([]float64, p),
		XScale:  make([]float64, p),
	}
	for j := range prob.XScale {
		prob.XScale[j] = 1
	}
	if !fitIntercept {
		return prob, nil
	}

	scaler := preprocessing.NewStandardScaler(true, normalize)
	if err := scaler.Fit(X); err != nil {
		return nil, err
	}
	copy(prob.XOffset, scaler.Mean)
	if normalize {
		copy(prob.XScale, ColumnNorms(scaler.Var, n))
	}

	prob.X.Apply(func(i, j int, v float64) float64 {
		return (v - prob.XOffset[j]) / prob.XScale[j]
	}, prob.X)

	prob.YOffset = floats.Sum(prob.Y.RawVector().Data) / float64(n)
	for i := 0; i < n; i++ {
		prob.Y.SetVec(i, prob.Y.AtVec(i)-prob.YOffset)
	}
	return prob, nil
}

// ColumnNorms turns population variances into L2 norms of centered columns.
// Zero norms map to one so constant columns stay zero after scaling.
func ColumnNorms(variance []float64, n int) []float64 {
	norms := make([]float64, len(variance))
	for j, v := range variance {
		norms[j] = math.Sqrt(v * float64(n))
		if norms[j] == 0 {
			norms[j] = 1
		}
	}
	return norms
}

// Rescale maps coefficients fitted on preprocessed data back to the original
// feature space and derives the intercept.
func Rescale(coef, xOffset, xScale []float64, yOffset float64) ([]float64, float64) {
	out := make([]float64, len(coef))
	for j, w := range coef {
		out[j] = w / xScale[j]
	}
	return out, yOffset - floats.Dot(xOffset, out)
}

// PredictLinear computes X·coef + intercept as an n×1 matrix.
func PredictLinear(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	r, c := X.Dims()
	out := make([]float64, r)

	raw, isRaw := X.(mat.RawMatrixer)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		if isRaw {
			g := raw.RawMatrix()
			for i := start; i < end; i++ {
				out[i] = floats.Dot(g.Data[i*g.Stride:i*g.Stride+c], coef) + intercept
			}
			return
		}
		for i := start; i < end; i++ {
			sum := intercept
			for j := 0; j < c; j++ {
				sum += X.At(i, j) * coef[j]
			}
			out[i] = sum
		}
	})
	return mat.NewDense(r, 1, out)
}
