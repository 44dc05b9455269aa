package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Lasso", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetFitted(3, 16)
	assert.True(t, s.IsFitted())
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 16, nSamples)

	assert.NoError(t, s.RequireFeatures("Lasso", "Predict", 3))
	err = s.RequireFeatures("Lasso", "Predict", 4)
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Expected)
	assert.Equal(t, 4, de.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestStateManagerConcurrent(t *testing.T) {
	s := NewStateManager()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetFitted(i, i*10)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.IsFitted()
			_, _ = s.GetDimensions()
		}()
	}
	wg.Wait()
	assert.True(t, s.IsFitted())
}

func TestModelWeights(t *testing.T) {
	w := &ModelWeights{
		ModelType:       "Lasso",
		Implementation:  "reference",
		Version:         WeightsVersion,
		Coefficients:    []float64{1.5, 0, -0.25},
		Intercept:       0.1,
		Hyperparameters: map[string]interface{}{"alpha": 0.1},
		IsFitted:        true,
	}
	w.Seal()
	require.NoError(t, w.Validate("Lasso"))

	data, err := w.ToJSON()
	require.NoError(t, err)
	var decoded ModelWeights
	require.NoError(t, decoded.FromJSON(data))
	assert.NoError(t, decoded.Validate("Lasso"))
	assert.Equal(t, w.Checksum, decoded.Checksum)

	assert.Error(t, w.Validate("ElasticNet"))

	tampered := w.Clone()
	tampered.Coefficients[0] = 2
	assert.Error(t, tampered.Validate("Lasso"))
	assert.Equal(t, 1.5, w.Coefficients[0])

	empty := &ModelWeights{ModelType: "Lasso", Version: WeightsVersion, IsFitted: true}
	assert.Error(t, empty.Validate(""))
	assert.Error(t, (&ModelWeights{Version: WeightsVersion}).Validate(""))
	assert.Error(t, (&ModelWeights{ModelType: "Lasso"}).Validate(""))
}
