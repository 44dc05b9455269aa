package datasets

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// Split is a train/test partition of the rows of a dataset.
type Split struct {
	XTrain, XTest *Array
	YTrain, YTest *Array
	// Row indices into the original data, in the order they were taken.
	TrainIndex, TestIndex []int
}

// TrainTestSplit shuffles the rows with seed and puts floor(n·trainSize) of them in
// the training set and the rest in the test set. Element types follow X and y.
func TrainTestSplit(X, y mat.Matrix, trainSize float64, seed uint64) (*Split, error) {
	const op = "TrainTestSplit"
	n, _ := X.Dims()
	ry, _ := y.Dims()
	if ry != n {
		return nil, errors.NewDimensionError(op, n, ry, 0)
	}
	if !(trainSize > 0 && trainSize < 1) {
		return nil, errors.NewValidationError("train_size", "must be in (0, 1)", trainSize)
	}
	nTrain := int(math.Floor(float64(n) * trainSize))
	if nTrain < 1 || nTrain >= n {
		return nil, errors.NewValueError(op, fmt.Sprintf(
			"with n_samples=%d and train_size=%g one of the subsets would be empty", n, trainSize))
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	train, test := perm[:nTrain], perm[nTrain:]

	xType, yType := DTypeOf(X), DTypeOf(y)
	return &Split{
		XTrain:     takeRows(X, train, xType),
		XTest:      takeRows(X, test, xType),
		YTrain:     takeRows(y, train, yType),
		YTest:      takeRows(y, test, yType),
		TrainIndex: append([]int(nil), train...),
		TestIndex:  append([]int(nil), test...),
	}, nil
}

func takeRows(m mat.Matrix, rows []int, dtype DType) *Array {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, src := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(src, j))
		}
	}
	return &Array{Dense: out, dtype: dtype}
}

// SmallRegressionDataset is the fixed problem used to compare estimators with their
// default hyperparameters: 1000 samples, 20 features, 10 informative, generated and
// split 80/20 with seed 10.
func SmallRegressionDataset(dtype DType) (*Split, error) {
	ds, err := MakeRegression(1000, 20, 10, WithSeed(10), WithDType(dtype))
	if err != nil {
		return nil, err
	}
	return TrainTestSplit(ds.X, ds.Y, 0.8, 10)
}
