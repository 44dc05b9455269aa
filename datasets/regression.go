package datasets

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
)

// Regression is a generated linear problem with its ground truth.
type Regression struct {
	X *Array // n_samples × n_features
	Y *Array // n_samples × 1
	// Coef holds the true coefficients, zero outside the informative columns.
	Coef        []float64
	Informative int
	Bias        float64
}

type regressionConfig struct {
	seed    uint64
	noise   float64
	bias    float64
	shuffle bool
	dtype   DType
}

// Option configures MakeRegression.
type Option func(*regressionConfig)

// WithSeed sets the generator seed. Default 0.
func WithSeed(seed uint64) Option {
	return func(c *regressionConfig) { c.seed = seed }
}

// WithNoise sets the standard deviation of the Gaussian noise added to y. Default 0.
func WithNoise(noise float64) Option {
	return func(c *regressionConfig) { c.noise = noise }
}

// WithBias sets the intercept of the underlying model. Default 0.
func WithBias(bias float64) Option {
	return func(c *regressionConfig) { c.bias = bias }
}

// WithShuffle controls row and column shuffling. Default true.
func WithShuffle(shuffle bool) Option {
	return func(c *regressionConfig) { c.shuffle = shuffle }
}

// WithDType rounds X and y to dtype. Default Float64.
func WithDType(dtype DType) Option {
	return func(c *regressionConfig) { c.dtype = dtype }
}

// MakeRegression generates a random regression problem.
//
// X is standard normal. The first nInformative columns get coefficients drawn from
// 100·U(0, 1) and the rest zero; y = X·coef + bias + N(0, noise²). With shuffling the
// rows and the columns (together with Coef) are permuted, so informative columns land
// anywhere. The same seed always yields the same problem.
func MakeRegression(nSamples, nFeatures, nInformative int, opts ...Option) (*Regression, error) {
	cfg := regressionConfig{shuffle: true, dtype: Float64}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case nSamples <= 0:
		return nil, errors.NewValidationError("n_samples", "must be positive", nSamples)
	case nFeatures <= 0:
		return nil, errors.NewValidationError("n_features", "must be positive", nFeatures)
	case nInformative < 0 || nInformative > nFeatures:
		return nil, errors.NewValidationError("n_informative", "must be in [0, n_features]", nInformative)
	case cfg.noise < 0:
		return nil, errors.NewValidationError("noise", "must be non-negative", cfg.noise)
	}

	start := time.Now()
	src := rand.NewPCG(cfg.seed, cfg.seed)
	rng := rand.New(src)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	uniform := distuv.Uniform{Min: 0, Max: 100, Src: src}

	data := make([]float64, nSamples*nFeatures)
	for i := range data {
		data[i] = normal.Rand()
	}
	coef := make([]float64, nFeatures)
	for j := 0; j < nInformative; j++ {
		coef[j] = uniform.Rand()
	}

	y := make([]float64, nSamples)
	for i := range y {
		y[i] = floats.Dot(data[i*nFeatures:(i+1)*nFeatures], coef) + cfg.bias
	}
	if cfg.noise > 0 {
		for i := range y {
			y[i] += cfg.noise * normal.Rand()
		}
	}

	X := mat.NewDense(nSamples, nFeatures, data)
	if cfg.shuffle {
		X, y = shuffleRows(rng, X, y)
		X, coef = shuffleColumns(rng, X, coef)
	}

	ds := &Regression{
		X:           NewArray(X, cfg.dtype),
		Y:           NewArray(mat.NewDense(nSamples, 1, y), cfg.dtype),
		Coef:        coef,
		Informative: nInformative,
		Bias:        cfg.bias,
	}

	log.GetLoggerWithName("datasets").Debug("regression dataset generated",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.InformativeKey, nInformative,
		log.PrecisionKey, cfg.dtype.String(),
		log.RandomSeedKey, cfg.seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ds, nil
}

func shuffleRows(rng *rand.Rand, X *mat.Dense, y []float64) (*mat.Dense, []float64) {
	n, p := X.Dims()
	perm := rng.Perm(n)
	out := mat.NewDense(n, p, nil)
	outY := make([]float64, n)
	for i, src := range perm {
		out.SetRow(i, X.RawRowView(src))
		outY[i] = y[src]
	}
	return out, outY
}

func shuffleColumns(rng *rand.Rand, X *mat.Dense, coef []float64) (*mat.Dense, []float64) {
	n, p := X.Dims()
	perm := rng.Perm(p)
	out := mat.NewDense(n, p, nil)
	outCoef := make([]float64, p)
	for j, src := range perm {
		out.SetCol(j, mat.Col(nil, src, X))
		outCoef[j] = coef[src]
	}
	return out, outCoef
}
