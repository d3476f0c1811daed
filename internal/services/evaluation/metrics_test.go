package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMAPEPerfectFit(t *testing.T) {
	a := []float64{10, 20, 30}
	got, err := MAPE(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestMAPESkipsZeroActuals(t *testing.T) {
	actual := []float64{0, 100, 200}
	predicted := []float64{5, 110, 180}
	got, err := MAPE(actual, predicted)
	require.NoError(t, err)
	// zero-actual point excluded: mean(10/100, 20/200) = 0.10
	assert.InDelta(t, 10.0, got, 1e-9)
}

func TestMAPEAllZeroActualsNotComputable(t *testing.T) {
	got, err := MAPE([]float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)
	assert.True(t, NotComputable(got))
}

func TestMAERMSE(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	predicted := []float64{2, 2, 2, 2}

	mae, err := MAE(actual, predicted)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mae, 1e-9)

	rmse, err := RMSE(actual, predicted)
	require.NoError(t, err)
	// sqrt((1+0+1+4)/4)
	assert.InDelta(t, 1.224744871, rmse, 1e-6)
}

func TestMetricsNonNegative(t *testing.T) {
	actual := []float64{3, -7, 12}
	predicted := []float64{-1, 4, 9}
	mape, err := MAPE(actual, predicted)
	require.NoError(t, err)
	mae, err := MAE(actual, predicted)
	require.NoError(t, err)
	rmse, err := RMSE(actual, predicted)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mape, 0.0)
	assert.GreaterOrEqual(t, mae, 0.0)
	assert.GreaterOrEqual(t, rmse, 0.0)
}

func TestEmptyAndMismatchedRejected(t *testing.T) {
	_, err := MAPE(nil, nil)
	assert.Error(t, err)
	_, err = MAE([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = RMSE([]float64{}, []float64{})
	assert.Error(t, err)
}
