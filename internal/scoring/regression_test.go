package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGonumRegressorFit(t *testing.T) {
	line, err := GonumRegressor{}.Fit([]float64{0, 1, 2, 3}, []float64{-1, 2, 5, 8})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, line.Slope, 1e-12)
	assert.InDelta(t, -1.0, line.Intercept, 1e-12)
	assert.InDelta(t, 14.0, line.At(5), 1e-12)

	_, err = GonumRegressor{}.Fit([]float64{1, 2}, []float64{1})
	assert.Error(t, err)

	_, err = GonumRegressor{}.Fit([]float64{1}, []float64{1})
	assert.Error(t, err)
}

func TestGonumRegressorConstantX(t *testing.T) {
	line, err := GonumRegressor{}.Fit([]float64{100, 100, 100}, []float64{90, 80, 85})
	require.NoError(t, err)
	assert.Equal(t, 0.0, line.Slope)
	assert.InDelta(t, 85.0, line.Intercept, 1e-12)
	assert.InDelta(t, 85.0, line.At(250), 1e-12)
}

func TestProbeRegressor(t *testing.T) {
	assert.NoError(t, ProbeRegressor(GonumRegressor{}))
	assert.Error(t, ProbeRegressor(nil))
}
