package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	Xs, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, s.Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{1.25, 0}, s.Var, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	col := mat.Col(nil, 0, Xs)
	var mean, sq float64
	for _, v := range col {
		mean += v
		sq += v * v
	}
	assert.InDelta(t, 0, mean/4, 1e-12)
	assert.InDelta(t, 1, sq/4, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 1, Xs))

	back, err := s.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
	assert.Contains(t, s.String(), "n_features=2")
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScaler(true, false)
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	assert.Equal(t, []float64{1, 1}, s.Scale)

	_, err = s.Transform(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = s.Fit(mat.NewDense(2, 1, []float64{math.Inf(1), 1}))
	var nie *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nie))
}
