package accel

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/core/model"
	"github.com/YuminosukeSato/cdlinear/datasets"
	"github.com/YuminosukeSato/cdlinear/device"
	"github.com/YuminosukeSato/cdlinear/linear"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
	linear_model "github.com/YuminosukeSato/cdlinear/sklearn/linear_model"
)

func gaussianProblem(n int, coef []float64, intercept, noise float64, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	p := len(coef)
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v := intercept + noise*rng.NormFloat64()
		for j := 0; j < p; j++ {
			x := rng.NormFloat64()
			X.Set(i, j, x)
			v += x * coef[j]
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	prev := errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(prev) })
	return &got
}

func newHostContext(t *testing.T, limit int64) device.Context {
	t.Helper()
	ctx, err := device.NewHostBackend(device.HostBackendOptions{Workers: 2, MemoryLimit: limit}).NewContext(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestLassoOrthogonalDesign(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 1,
		1, -1,
		-1, 1,
		-1, -1,
	})
	y := mat.NewDense(4, 1, []float64{3, 1, -1, -3})

	for _, tc := range []struct {
		alpha float64
		want  []float64
		iters int
	}{
		{0.5, []float64{1.5, 0.5}, 2},
		{1.5, []float64{0.5, 0}, 2},
		{2.5, []float64{0, 0}, 1},
	} {
		m := NewLasso(linear.WithAlpha(tc.alpha), linear.WithFitIntercept(false))
		require.NoError(t, m.Fit(X, y))
		assert.InDeltaSlice(t, tc.want, m.Coef(), 1e-12, "alpha=%g", tc.alpha)
		assert.Equal(t, tc.iters, m.NIter(), "alpha=%g", tc.alpha)
		assert.Equal(t, device.Float64, m.Precision())
	}
}

func TestAgreesWithReference(t *testing.T) {
	X, y := gaussianProblem(200, []float64{1.5, -2, 0, 0.5, 0}, 3, 0.1, 11)

	tests := []struct {
		name       string
		opts       []linear.Option
		elasticNet bool
	}{
		{"lasso cyclic", []linear.Option{linear.WithAlpha(0.1)}, false},
		{"lasso normalize", []linear.Option{linear.WithAlpha(0.01), linear.WithNormalize(true)}, false},
		{"lasso no intercept", []linear.Option{linear.WithAlpha(0.05), linear.WithFitIntercept(false)}, false},
		{"elastic net", []linear.Option{linear.WithAlpha(0.1), linear.WithL1Ratio(0.3)}, true},
		{"elastic net random", []linear.Option{linear.WithAlpha(0.2), linear.WithSelection(linear.Random), linear.WithRandomState(5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append(append([]linear.Option(nil), tt.opts...),
				linear.WithTol(1e-10), linear.WithMaxIter(10000))

			var dev, ref interface {
				Fit(X, y mat.Matrix) error
				Coef() []float64
				Intercept() float64
			}
			if tt.elasticNet {
				dev, ref = NewElasticNet(opts...), linear_model.NewElasticNet(opts...)
			} else {
				dev, ref = NewLasso(opts...), linear_model.NewLasso(opts...)
			}
			require.NoError(t, dev.Fit(X, y))
			require.NoError(t, ref.Fit(X, y))

			assert.InDeltaSlice(t, ref.Coef(), dev.Coef(), 1e-4)
			assert.InDelta(t, ref.Intercept(), dev.Intercept(), 1e-4)
		})
	}
}

func TestFloat32Input(t *testing.T) {
	ds, err := datasets.MakeRegression(300, 6, 3, datasets.WithSeed(3), datasets.WithNoise(1), datasets.WithDType(datasets.Float32))
	require.NoError(t, err)

	opts := []linear.Option{linear.WithAlpha(0.1), linear.WithTol(1e-8)}
	m := NewLasso(opts...)
	require.NoError(t, m.Fit(ds.X, ds.Y))
	assert.Equal(t, device.Float32, m.Precision())

	// only the float32 storage of X and the Gram differs
	ref := linear_model.NewLasso(opts...)
	require.NoError(t, ref.Fit(ds.X, ds.Y))
	for j, w := range ref.Coef() {
		assert.InDelta(t, w, m.Coef()[j], 1e-2*(1+math.Abs(w)))
	}

	score, err := m.Score(ds.X, ds.Y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)

	forced := NewLasso(linear.WithAlpha(0.1)).WithPrecision(device.Float64)
	require.NoError(t, forced.Fit(ds.X, ds.Y))
	assert.Equal(t, device.Float64, forced.Precision())
}

// More columns than rows: neither solver reaches tol, so the coordinates they visit
// decide where max_iter leaves them.
func TestRandomSelectionTracksReference(t *testing.T) {
	captureWarnings(t)
	split, err := wideSplit()
	require.NoError(t, err)

	for _, seed := range []uint64{0, 4} {
		opts := []linear.Option{
			linear.WithAlpha(0.001),
			linear.WithSelection(linear.Random),
			linear.WithRandomState(seed),
			linear.WithTol(1e-10),
			linear.WithMaxIter(1000),
		}
		dev := NewLasso(opts...)
		ref := linear_model.NewLasso(opts...)
		require.NoError(t, dev.Fit(split.XTrain, split.YTrain))
		require.NoError(t, ref.Fit(split.XTrain, split.YTrain))

		for j, w := range ref.Coef() {
			assert.InDelta(t, w, dev.Coef()[j], 1e-2*(1+math.Abs(w)), "seed=%d coef %d", seed, j)
		}

		devScore, err := dev.Score(split.XTest, split.YTest)
		require.NoError(t, err)
		refScore, err := ref.Score(split.XTest, split.YTest)
		require.NoError(t, err)
		assert.InDelta(t, refScore, devScore, 1e-3, "seed=%d", seed)
	}
}

func wideSplit() (*datasets.Split, error) {
	ds, err := datasets.MakeRegression(20, 100, 2)
	if err != nil {
		return nil, err
	}
	return datasets.TrainTestSplit(ds.X, ds.Y, 0.8, 0)
}

func TestTableInput(t *testing.T) {
	ds, err := datasets.MakeRegression(120, 4, 2, datasets.WithSeed(1), datasets.WithNoise(0.5))
	require.NoError(t, err)

	a := NewElasticNet(linear.WithAlpha(0.2))
	require.NoError(t, a.Fit(ds.X, ds.Y))
	b := NewElasticNet(linear.WithAlpha(0.2))
	require.NoError(t, b.Fit(datasets.NewTable(ds.X, datasets.Float64), ds.Y))

	assert.InDeltaSlice(t, a.Coef(), b.Coef(), 1e-12)
	assert.InDelta(t, a.Intercept(), b.Intercept(), 1e-12)
}

func TestSharedContextReleasesBuffers(t *testing.T) {
	ctx := newHostContext(t, 0)
	X, y := gaussianProblem(50, []float64{1, 2, 3}, 0, 0.1, 2)

	m := NewElasticNet(linear.WithAlpha(0.01)).WithContext(ctx)
	require.NoError(t, m.Fit(X, y))
	assert.Zero(t, ctx.Allocated())

	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.Zero(t, ctx.Allocated())

	r, c := pred.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 1, c)

	host := linear.PredictLinear(X, m.Coef(), m.Intercept())
	assert.True(t, mat.EqualApprox(host, pred, 1e-10))
}

func TestOutOfMemory(t *testing.T) {
	ctx := newHostContext(t, 1024)
	X, y := gaussianProblem(100, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0, 0.1, 2)

	m := NewLasso(linear.WithAlpha(0.1)).WithContext(ctx)
	err := m.Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, device.ErrOutOfMemory))
	assert.False(t, m.IsFitted())
}

func TestNoBackend(t *testing.T) {
	prev, _ := device.Current()
	device.RegisterBackend(nil)
	t.Cleanup(func() { device.RegisterBackend(prev) })

	X, y := gaussianProblem(10, []float64{1}, 0, 0.1, 2)
	err := NewLasso().Fit(X, y)
	assert.True(t, errors.Is(err, device.ErrNoBackend))
}

func TestConvergenceWarning(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := gaussianProblem(60, []float64{1, -1, 2}, 0, 0.5, 4)

	m := NewLasso(linear.WithAlpha(1e-4), linear.WithMaxIter(1), linear.WithTol(1e-12))
	require.NoError(t, m.Fit(X, y))
	require.Len(t, *warnings, 1)

	var cw *errors.ConvergenceWarning
	require.True(t, errors.As((*warnings)[0], &cw))
	assert.Equal(t, "Lasso", cw.Algorithm)
	assert.Equal(t, 1, cw.Iterations)
}

func TestPredictErrors(t *testing.T) {
	m := NewLasso()
	_, err := m.Predict(mat.NewDense(2, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := gaussianProblem(20, []float64{1, 2}, 0, 0.1, 1)
	require.NoError(t, m.Fit(X, y))
	_, err = m.Predict(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = NewElasticNet(linear.WithL1Ratio(-1)).Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestParamsAndClone(t *testing.T) {
	ctx := newHostContext(t, 0)
	m := NewLasso(linear.WithAlpha(0.3)).WithContext(ctx).WithPrecision(device.Float32)

	params := m.GetParams(true)
	assert.Equal(t, linear.DeviceTol, params["tol"])
	assert.NotContains(t, params, "l1_ratio")
	assert.Error(t, m.SetParams(map[string]interface{}{"l1_ratio": 0.5}))
	require.NoError(t, m.SetParams(map[string]interface{}{"max_iter": 20}))

	c := m.Clone()
	assert.Equal(t, m.Config(), c.Config())
	assert.Equal(t, 1.0, c.Config().L1Ratio)
	assert.False(t, c.IsFitted())
	assert.Contains(t, c.String(), "Lasso(alpha=0.3")

	X, y := gaussianProblem(30, []float64{1, 2}, 1, 0.1, 6)
	require.NoError(t, c.Fit(X, y))
	assert.Equal(t, device.Float32, c.Precision())
	assert.Contains(t, c.String(), "precision=float32")

	en := NewElasticNet()
	assert.Equal(t, 0.5, en.Config().L1Ratio)
	assert.Equal(t, linear.DeviceTol, en.Config().Tol)
}

func TestWeightsRoundTrip(t *testing.T) {
	X, y := gaussianProblem(80, []float64{2, 0, -1}, 0.5, 0.1, 8)
	m := NewElasticNet(linear.WithAlpha(0.05))
	require.NoError(t, m.Fit(X, y))

	w, err := m.ExportWeights()
	require.NoError(t, err)
	assert.Equal(t, log.ImplementationDevice, w.Implementation)
	assert.Equal(t, "float64", w.Metadata["precision"])

	data, err := w.ToJSON()
	require.NoError(t, err)
	decoded := &model.ModelWeights{}
	require.NoError(t, decoded.FromJSON(data))

	restored := NewElasticNet()
	require.NoError(t, restored.ImportWeights(decoded))
	assert.Equal(t, m.Coef(), restored.Coef())
	assert.Equal(t, m.Config(), restored.Config())

	p1, err := m.Predict(X)
	require.NoError(t, err)
	p2, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))

	_, err = NewLasso().ExportWeights()
	assert.Error(t, err)
	assert.Error(t, NewLasso().ImportWeights(w))
}
