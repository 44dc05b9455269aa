package linear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

type opaque struct{ mat.Matrix }

func TestDefaults(t *testing.T) {
	lasso := DefaultLassoConfig()
	assert.Equal(t, 1.0, lasso.Alpha)
	assert.Equal(t, 1.0, lasso.L1Ratio)
	assert.True(t, lasso.FitIntercept)
	assert.False(t, lasso.Normalize)
	assert.Equal(t, 1000, lasso.MaxIter)
	assert.Equal(t, ReferenceTol, lasso.Tol)
	assert.Equal(t, Cyclic, lasso.Selection)

	enet := DefaultElasticNetConfig()
	assert.Equal(t, 0.5, enet.L1Ratio)
	require.NoError(t, enet.Validate())
}

func TestOptions(t *testing.T) {
	cfg := DefaultElasticNetConfig().Apply(
		WithAlpha(0.2),
		WithL1Ratio(0.3),
		WithFitIntercept(false),
		WithNormalize(true),
		WithMaxIter(50),
		WithTol(1e-6),
		WithSelection(Random),
		WithRandomState(7),
	)
	assert.Equal(t, Config{
		Alpha: 0.2, L1Ratio: 0.3, FitIntercept: false, Normalize: true,
		MaxIter: 50, Tol: 1e-6, Selection: Random, RandomState: 7,
	}, cfg)

	replaced := DefaultLassoConfig().Apply(WithConfig(cfg), WithAlpha(0.1))
	assert.Equal(t, 0.1, replaced.Alpha)
	assert.Equal(t, 0.3, replaced.L1Ratio)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		param string
	}{
		{"negative alpha", WithAlpha(-1), "alpha"},
		{"l1 ratio above one", WithL1Ratio(1.5), "l1_ratio"},
		{"zero max iter", WithMaxIter(0), "max_iter"},
		{"negative tol", WithTol(-1), "tol"},
		{"unknown selection", WithSelection("shuffle"), "selection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultLassoConfig().Apply(tt.opt).Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
	assert.NoError(t, DefaultLassoConfig().Apply(WithAlpha(0)).Validate())
}

func TestCheckRegularizationWarns(t *testing.T) {
	var got []error
	prev := errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(prev) })

	DefaultLassoConfig().CheckRegularization("Lasso")
	assert.Empty(t, got)

	DefaultLassoConfig().Apply(WithAlpha(0)).CheckRegularization("Lasso")
	require.Len(t, got, 1)
	var rw *errors.RegularizationWarning
	require.True(t, errors.As(got[0], &rw))
	assert.Equal(t, "Lasso", rw.Estimator)
}

func TestParamsRoundTrip(t *testing.T) {
	cfg := DefaultElasticNetConfig()
	params := cfg.Params()
	assert.Equal(t, "cyclic", params["selection"])

	require.NoError(t, cfg.SetParams(map[string]interface{}{
		"alpha":        0.7,
		"max_iter":     200.0,
		"selection":    "random",
		"random_state": 3,
	}))
	assert.Equal(t, 0.7, cfg.Alpha)
	assert.Equal(t, 200, cfg.MaxIter)
	assert.Equal(t, Random, cfg.Selection)
	assert.Equal(t, uint64(3), cfg.RandomState)

	before := cfg
	assert.Error(t, cfg.SetParams(map[string]interface{}{"alpha": "big"}))
	assert.Error(t, cfg.SetParams(map[string]interface{}{"warm_start": true}))
	assert.Error(t, cfg.SetParams(map[string]interface{}{"max_iter": 1.5}))
	assert.Error(t, cfg.SetParams(map[string]interface{}{"l1_ratio": 2.0}))
	assert.Equal(t, before, cfg, "failed SetParams leaves config untouched")

	assert.Contains(t, cfg.String(), "selection='random'")
}

func TestCheckInput(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	n, p, err := CheckInput("Fit", X, mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, p)

	_, _, err = CheckInput("Fit", X, mat.NewDense(2, 1, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, _, err = CheckInput("Fit", X, mat.NewDense(3, 2, nil))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, _, err = CheckInput("Fit", mat.NewDense(3, 2, []float64{1, math.NaN(), 3, 4, 5, 6}), mat.NewDense(3, 1, nil))
	var nie *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nie))
}

func TestPreprocessCentersAndNormalizes(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		6, 5,
	})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	prob, err := Preprocess(X, y, true, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 5}, prob.XOffset, 1e-12)
	assert.InDelta(t, 5.0, prob.YOffset, 1e-12)

	// centered column 0 is (-2,-1,0,3): norm sqrt(14)
	assert.InDelta(t, math.Sqrt(14), prob.XScale[0], 1e-12)
	assert.Equal(t, 1.0, prob.XScale[1])

	col := mat.NewVecDense(4, mat.Col(nil, 0, prob.X))
	assert.InDelta(t, 1.0, mat.Norm(col, 2), 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 1, prob.X))
	assert.InDeltaSlice(t, []float64{-3, -1, 1, 3}, prob.Y.RawVector().Data, 1e-12)

	// input untouched
	assert.Equal(t, 1.0, X.At(0, 0))
}

func TestPreprocessWithoutIntercept(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, 3})
	prob, err := Preprocess(X, mat.NewDense(2, 1, []float64{1, 1}), false, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, prob.XOffset)
	assert.Equal(t, []float64{1}, prob.XScale)
	assert.Equal(t, 0.0, prob.YOffset)
	assert.True(t, mat.Equal(X, prob.X))
}

func TestRescaleAndPredict(t *testing.T) {
	coef, intercept := Rescale([]float64{2, 3}, []float64{1, 2}, []float64{2, 1}, 10)
	assert.Equal(t, []float64{1, 3}, coef)
	assert.InDelta(t, 10-1-6, intercept, 1e-12)

	X := mat.NewDense(2, 2, []float64{1, 1, 2, 0})
	pred := PredictLinear(X, coef, intercept)
	r, c := pred.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, []float64{7, 5}, mat.Col(nil, 0, pred))

	// non-raw matrices take the At path
	predT := PredictLinear(opaque{X}, coef, intercept)
	assert.True(t, mat.Equal(pred, predT))
}

func TestPredictLinearParallel(t *testing.T) {
	n := 3 * parallelThreshold
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, 1)
	}
	pred := PredictLinear(X, []float64{2, -1}, 0.5)
	for i := 0; i < n; i += 997 {
		assert.Equal(t, 2*float64(i)-0.5, pred.At(i, 0))
	}
}
