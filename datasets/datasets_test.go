package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

func TestMakeRegressionShapeAndTruth(t *testing.T) {
	ds, err := MakeRegression(50, 8, 3, WithSeed(1))
	require.NoError(t, err)

	r, c := ds.X.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 8, c)
	ry, cy := ds.Y.Dims()
	assert.Equal(t, 50, ry)
	assert.Equal(t, 1, cy)
	assert.Equal(t, Float64, ds.X.DType())

	nonZero := 0
	for _, w := range ds.Coef {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.Less(t, w, 100.0)
		if w != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 3, nonZero)

	// noise defaults to zero, so y is exactly linear in X
	for i := 0; i < r; i++ {
		assert.InDelta(t, floats.Dot(ds.X.RawRowView(i), ds.Coef), ds.Y.At(i, 0), 1e-9)
	}
}

func TestMakeRegressionDeterministic(t *testing.T) {
	a, err := MakeRegression(30, 5, 2, WithSeed(7), WithNoise(1))
	require.NoError(t, err)
	b, err := MakeRegression(30, 5, 2, WithSeed(7), WithNoise(1))
	require.NoError(t, err)
	c, err := MakeRegression(30, 5, 2, WithSeed(8), WithNoise(1))
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.X, b.X))
	assert.True(t, mat.Equal(a.Y, b.Y))
	assert.Equal(t, a.Coef, b.Coef)
	assert.False(t, mat.Equal(a.X, c.X))
}

func TestMakeRegressionBiasAndNoShuffle(t *testing.T) {
	ds, err := MakeRegression(20, 4, 2, WithBias(5), WithShuffle(false))
	require.NoError(t, err)

	assert.NotZero(t, ds.Coef[0])
	assert.NotZero(t, ds.Coef[1])
	assert.Zero(t, ds.Coef[2])
	assert.Zero(t, ds.Coef[3])
	assert.Equal(t, 5.0, ds.Bias)
	for i := 0; i < 20; i++ {
		assert.InDelta(t, floats.Dot(ds.X.RawRowView(i), ds.Coef)+5, ds.Y.At(i, 0), 1e-9)
	}
}

func TestMakeRegressionFloat32(t *testing.T) {
	ds, err := MakeRegression(40, 6, 3, WithDType(Float32))
	require.NoError(t, err)
	assert.Equal(t, Float32, ds.X.DType())
	assert.Equal(t, Float32, ds.Y.DType())

	r, c := ds.X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := ds.X.At(i, j)
			assert.Equal(t, float64(float32(v)), v)
		}
		v := ds.Y.At(i, 0)
		assert.Equal(t, float64(float32(v)), v)
	}
}

func TestMakeRegressionValidation(t *testing.T) {
	tests := []struct {
		name              string
		n, p, informative int
		opts              []Option
		param             string
	}{
		{"no samples", 0, 3, 1, nil, "n_samples"},
		{"no features", 10, 0, 0, nil, "n_features"},
		{"too many informative", 10, 3, 4, nil, "n_informative"},
		{"negative informative", 10, 3, -1, nil, "n_informative"},
		{"negative noise", 10, 3, 1, []Option{WithNoise(-1)}, "noise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MakeRegression(tt.n, tt.p, tt.informative, tt.opts...)
			require.Error(t, err)
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestTrainTestSplit(t *testing.T) {
	ds, err := MakeRegression(20, 3, 2, WithDType(Float32))
	require.NoError(t, err)

	s, err := TrainTestSplit(ds.X, ds.Y, 0.8, 0)
	require.NoError(t, err)

	assert.Len(t, s.TrainIndex, 16)
	assert.Len(t, s.TestIndex, 4)
	rTrain, _ := s.XTrain.Dims()
	rTest, _ := s.XTest.Dims()
	assert.Equal(t, 16, rTrain)
	assert.Equal(t, 4, rTest)
	assert.Equal(t, Float32, s.XTrain.DType())
	assert.Equal(t, Float32, s.YTest.DType())

	seen := make(map[int]bool)
	for _, idx := range append(append([]int(nil), s.TrainIndex...), s.TestIndex...) {
		assert.False(t, seen[idx], "row %d appears twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, 20)

	for i, src := range s.TestIndex {
		assert.Equal(t, ds.X.RawRowView(src), s.XTest.RawRowView(i))
		assert.Equal(t, ds.Y.At(src, 0), s.YTest.At(i, 0))
	}

	again, err := TrainTestSplit(ds.X, ds.Y, 0.8, 0)
	require.NoError(t, err)
	assert.Equal(t, s.TrainIndex, again.TrainIndex)
}

func TestTrainTestSplitErrors(t *testing.T) {
	X := mat.NewDense(4, 2, nil)
	y := mat.NewDense(4, 1, nil)

	_, err := TrainTestSplit(X, mat.NewDense(3, 1, nil), 0.8, 0)
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))

	_, err = TrainTestSplit(X, y, 1, 0)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	// floor(4 * 0.1) == 0 rows for training
	_, err = TrainTestSplit(X, y, 0.1, 0)
	var vaerr *errors.ValueError
	assert.True(t, errors.As(err, &vaerr))

	_, err = TrainTestSplit(mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), 0.5, 0)
	assert.Error(t, err)
}

func TestSmallRegressionDataset(t *testing.T) {
	for _, dtype := range []DType{Float32, Float64} {
		t.Run(dtype.String(), func(t *testing.T) {
			s, err := SmallRegressionDataset(dtype)
			require.NoError(t, err)
			r, c := s.XTrain.Dims()
			assert.Equal(t, 800, r)
			assert.Equal(t, 20, c)
			r, _ = s.XTest.Dims()
			assert.Equal(t, 200, r)
			assert.Equal(t, dtype, s.XTrain.DType())
		})
	}

	a, err := SmallRegressionDataset(Float64)
	require.NoError(t, err)
	b, err := SmallRegressionDataset(Float64)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.XTrain, b.XTrain))
}

func TestTable(t *testing.T) {
	src := mat.NewDense(3, 2, []float64{
		1, 0.1,
		2, 0.2,
		3, 0.3,
	})
	tbl := NewTable(src, Float32)

	r, c := tbl.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []string{"fea0", "fea1"}, tbl.Names())
	assert.Equal(t, Float32, DTypeOf(tbl))
	assert.Equal(t, float64(float32(0.2)), tbl.At(1, 1))
	assert.Equal(t, float64(float32(0.3)), tbl.T().At(1, 2))

	col, ok := tbl.Column("fea0")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, col)
	_, ok = tbl.Column("fea9")
	assert.False(t, ok)

	assert.Equal(t, 2.0, tbl.ColView(0).AtVec(1))
	assert.Panics(t, func() { tbl.At(3, 0) })
	assert.Panics(t, func() { tbl.At(0, 2) })

	arr := NewArray(src, Float64)
	assert.False(t, mat.Equal(arr, tbl))
	assert.True(t, mat.EqualApprox(arr, tbl, 1e-7))
	assert.Equal(t, Float64, DTypeOf(src))
}

func TestParseDType(t *testing.T) {
	d, err := ParseDType("float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, d)
	assert.Equal(t, 4, d.Size())

	d, err = ParseDType("float64")
	require.NoError(t, err)
	assert.Equal(t, 8, d.Size())

	_, err = ParseDType("int8")
	assert.Error(t, err)
}
