package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
	"LoadCast/internal/services/seasonal"
)

func augSeries(t *testing.T, start time.Time, n int, step time.Duration, value func(i int) float64) models.AugmentedSeries {
	t.Helper()
	samples := make([]models.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = models.Sample{
			Timestamp: start.Add(time.Duration(i) * step),
			Value:     value(i),
		}
	}
	series := models.MetricSeries{
		Key:     models.Key{Entity: "web-01", Metric: "cpu"},
		Samples: samples,
	}
	aug, err := features.Augment(series)
	require.NoError(t, err)
	return aug
}

func dailyCPU(i int) float64 {
	// half-hourly cadence: 48 samples per day
	return 50 + 20*math.Sin(2*math.Pi*float64(i)/48) + 0.02*float64(i)
}

func TestTrainerProducesEvaluatedModel(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 4*48, 30*time.Minute, dailyCPU)

	trainer := NewTrainer(seasonal.NewBackend(), TrainerConfig{})
	model, err := trainer.Train(series, models.DefaultHyperparameters())
	require.NoError(t, err)

	assert.Equal(t, series.Key, model.Key)
	assert.Equal(t, series.Samples[0].Timestamp, model.WindowStart)
	assert.Equal(t, series.Samples[len(series.Samples)-1].Timestamp, model.WindowEnd)
	assert.Equal(t, 4*48, model.DataPoints)
	assert.NotEmpty(t, model.Blob)
	assert.False(t, model.TrainedAt.IsZero())

	// a clean sinusoid plus trend should fit well in sample
	assert.Less(t, model.Quality.MAPE, 10.0)
	assert.Greater(t, model.Quality.RMSE, 0.0)
	assert.GreaterOrEqual(t, model.Quality.RMSE, model.Quality.MAE)
}

func TestTrainerRejectsShortSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 10, 30*time.Minute, dailyCPU)

	trainer := NewTrainer(seasonal.NewBackend(), TrainerConfig{MinPoints: 96})
	_, err := trainer.Train(series, models.DefaultHyperparameters())

	var insufficient *models.DataInsufficientError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 10, insufficient.Points)
	assert.Equal(t, 96, insufficient.Min)
}

func TestTrainerRejectsConstantSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 2*48, 30*time.Minute, func(int) float64 { return 42 })

	trainer := NewTrainer(seasonal.NewBackend(), TrainerConfig{})
	_, err := trainer.Train(series, models.DefaultHyperparameters())

	var failed *models.TrainingFailedError
	require.True(t, errors.As(err, &failed))
	assert.False(t, failed.Timeout)
}

func TestTrainerWrapsBackendFailure(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 2*48, 30*time.Minute, dailyCPU)

	trainer := NewTrainer(&scriptedBackend{fitErr: errors.New("singular system")}, TrainerConfig{})
	_, err := trainer.Train(series, models.DefaultHyperparameters())

	var failed *models.TrainingFailedError
	require.True(t, errors.As(err, &failed))
	assert.ErrorContains(t, failed.Err, "singular system")
}

func TestTrainerMinPointsDefault(t *testing.T) {
	trainer := NewTrainer(seasonal.NewBackend(), TrainerConfig{})
	assert.Equal(t, 96, trainer.MinPoints())

	trainer = NewTrainer(seasonal.NewBackend(), TrainerConfig{MinPoints: 200})
	assert.Equal(t, 200, trainer.MinPoints())
}
