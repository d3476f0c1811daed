package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/seasonal"
)

// scriptedBackend encodes the hyperparameter fingerprint into the blob
// and predicts a constant value per candidate, so validation scores are
// fully controlled by the test.
type scriptedBackend struct {
	fitErr   error
	failFor  map[string]bool
	predict  map[string]float64 // params fingerprint -> constant prediction
	fallback float64
}

func (b *scriptedBackend) Fit(series models.AugmentedSeries, params models.HyperparameterSet) ([]byte, error) {
	if b.fitErr != nil {
		return nil, b.fitErr
	}
	if b.failFor[params.String()] {
		return nil, errors.New("scripted fit failure")
	}
	return []byte(params.String()), nil
}

func (b *scriptedBackend) Predict(blob []byte, horizon int, frequency time.Duration, confidence float64) ([]models.ForecastPoint, error) {
	return nil, errors.New("not scripted")
}

func (b *scriptedBackend) PredictAt(blob []byte, timestamps []time.Time, confidence float64) ([]models.ForecastPoint, error) {
	v, ok := b.predict[string(blob)]
	if !ok {
		v = b.fallback
	}
	points := make([]models.ForecastPoint, len(timestamps))
	for i, ts := range timestamps {
		points[i] = models.ForecastPoint{Timestamp: ts, Value: v, LowerBound: v, UpperBound: v}
	}
	return points, nil
}

func candidateGrid(scales ...float64) models.Grid {
	g := models.Grid{}
	for _, s := range scales {
		c := models.DefaultHyperparameters()
		c.ChangepointPriorScale = s
		g.Candidates = append(g.Candidates, c)
	}
	return g
}

func TestTunerPicksLowestValidationError(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, func(int) float64 { return 100 })
	grid := candidateGrid(0.01, 0.1, 0.5)

	backend := &scriptedBackend{predict: map[string]float64{
		grid.Candidates[0].String(): 80,  // MAPE 20%
		grid.Candidates[1].String(): 99,  // MAPE 1%, winner
		grid.Candidates[2].String(): 110, // MAPE 10%
	}}
	tuner := NewTuner(backend, TunerConfig{Workers: 3})

	res, err := tuner.Tune(context.Background(), series, grid)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.CandidateIndex)
	assert.Equal(t, grid.Candidates[1], res.Params)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestTunerTieBreaksByGridOrder(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, func(int) float64 { return 100 })
	grid := candidateGrid(0.01, 0.1, 0.5)

	// all candidates score identically; the earliest must win
	backend := &scriptedBackend{fallback: 95}
	tuner := NewTuner(backend, TunerConfig{Workers: 4})

	for run := 0; run < 5; run++ {
		res, err := tuner.Tune(context.Background(), series, grid)
		require.NoError(t, err)
		assert.Equal(t, 0, res.CandidateIndex)
	}
}

func TestTunerSkipsFailedCandidates(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, func(int) float64 { return 100 })
	grid := candidateGrid(0.01, 0.1)

	backend := &scriptedBackend{
		failFor:  map[string]bool{grid.Candidates[0].String(): true},
		fallback: 90,
	}
	tuner := NewTuner(backend, TunerConfig{Workers: 2})

	res, err := tuner.Tune(context.Background(), series, grid)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CandidateIndex)
}

func TestTunerAllZeroActualsSelectsEarliest(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, func(int) float64 { return 0 })
	grid := candidateGrid(0.01, 0.1)

	backend := &scriptedBackend{fallback: 5}
	tuner := NewTuner(backend, TunerConfig{Workers: 2})

	res, err := tuner.Tune(context.Background(), series, grid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CandidateIndex)
	assert.True(t, math.IsNaN(res.Score))
}

func TestTunerSkipsShortSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 6, 30*time.Minute, dailyCPU)

	grid := candidateGrid(0.01, 0.1, 0.5)
	grid.DefaultIndex = 2

	tuner := NewTuner(seasonal.NewBackend(), TunerConfig{})
	res, err := tuner.Tune(context.Background(), series, grid)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, -1, res.CandidateIndex)
	assert.Equal(t, grid.Candidates[2], res.Params)
	assert.True(t, math.IsNaN(res.Score))
}

func TestTunerHoldoutForMidSizeSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	// below the CV floor but long enough for a 20% holdout
	series := augSeries(t, start, 50, 30*time.Minute, func(int) float64 { return 100 })
	grid := candidateGrid(0.01, 0.1)

	backend := &scriptedBackend{predict: map[string]float64{
		grid.Candidates[0].String(): 120,
		grid.Candidates[1].String(): 101,
	}}
	tuner := NewTuner(backend, TunerConfig{MinPointsForCV: 100})

	res, err := tuner.Tune(context.Background(), series, grid)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.CandidateIndex)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestTunerAllCandidatesFailed(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, dailyCPU)

	backend := &scriptedBackend{fitErr: errors.New("singular system")}
	tuner := NewTuner(backend, TunerConfig{Workers: 2})

	_, err := tuner.Tune(context.Background(), series, candidateGrid(0.01, 0.1))

	var failed *models.TrainingFailedError
	require.True(t, errors.As(err, &failed))
}

func TestTunerHonorsContextCancellation(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := augSeries(t, start, 120, 30*time.Minute, dailyCPU)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tuner := NewTuner(seasonal.NewBackend(), TunerConfig{Workers: 1})
	_, err := tuner.Tune(ctx, series, candidateGrid(0.01, 0.1, 0.5))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTunerSplitSchemes(t *testing.T) {
	tuner := NewTuner(seasonal.NewBackend(), TunerConfig{MinPointsForCV: 100, CVFolds: 3, CVHorizon: 12})

	folds, skipped := tuner.splits(120)
	require.False(t, skipped)
	require.Len(t, folds, 3)
	assert.Equal(t, fold{trainEnd: 84, valEnd: 96}, folds[0])
	assert.Equal(t, fold{trainEnd: 96, valEnd: 108}, folds[1])
	assert.Equal(t, fold{trainEnd: 108, valEnd: 120}, folds[2])

	folds, skipped = tuner.splits(50)
	require.False(t, skipped)
	require.Len(t, folds, 1)
	assert.Equal(t, fold{trainEnd: 40, valEnd: 50}, folds[0])

	_, skipped = tuner.splits(6)
	assert.True(t, skipped)
}
