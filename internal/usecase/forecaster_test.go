package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/seasonal"
	"LoadCast/pkg/logger"
)

type fakeSource struct {
	series  models.MetricSeries
	err     error
	delay   time.Duration
	fetches atomic.Int32
}

func (s *fakeSource) GetHistoricalSeries(ctx context.Context, key models.Key, start, end time.Time) (models.MetricSeries, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.MetricSeries{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.MetricSeries{}, s.err
	}
	out := s.series
	out.Key = key
	return out, nil
}

func (s *fakeSource) Health(ctx context.Context) error { return nil }

type fakeModelStore struct {
	mu      sync.Mutex
	models  map[string]*models.TrainedModel
	loadErr error
	saveErr error
	saves   int
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{models: make(map[string]*models.TrainedModel)}
}

func (s *fakeModelStore) Save(ctx context.Context, m *models.TrainedModel) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return false, s.saveErr
	}
	if prev, ok := s.models[m.Key.String()]; ok && m.WindowEnd.Before(prev.WindowEnd) {
		return false, nil
	}
	s.models[m.Key.String()] = m
	s.saves++
	return true, nil
}

func (s *fakeModelStore) Load(ctx context.Context, key models.Key) (*models.TrainedModel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	m, ok := s.models[key.String()]
	return m, ok, nil
}

func (s *fakeModelStore) Delete(ctx context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, key.String())
	return nil
}

func (s *fakeModelStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type fakeSink struct {
	mu      sync.Mutex
	upserts int
	last    *models.ForecastResult
}

func (s *fakeSink) UpsertPredictions(ctx context.Context, key models.Key, result *models.ForecastResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.last = result
	return len(result.Points), nil
}

type fakeMetrics struct{}

func (fakeMetrics) RecordTraining(entity, metric, outcome string, seconds float64) {}
func (fakeMetrics) RecordForecast(entity, metric string, points int)               {}
func (fakeMetrics) RecordAnomaly(entity, metric string)                            {}
func (fakeMetrics) RecordError(kind string)                                        {}
func (fakeMetrics) RecordModelStoreOp(op, outcome string)                          {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func trainingSeries(n int) models.MetricSeries {
	start := time.Now().UTC().Add(-time.Duration(n) * 30 * time.Minute)
	samples := make([]models.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = models.Sample{
			Timestamp: start.Add(time.Duration(i) * 30 * time.Minute),
			Value:     dailyCPU(i),
		}
	}
	return models.MetricSeries{Samples: samples}
}

func newTestForecaster(t *testing.T, source *fakeSource, store *fakeModelStore, sink *fakeSink, cfg ForecasterConfig) *Forecaster {
	t.Helper()
	backend := seasonal.NewBackend()
	return NewForecaster(
		source,
		store,
		sink,
		NewTuner(backend, TunerConfig{Workers: 2}),
		NewTrainer(backend, TrainerConfig{}),
		backend,
		candidateGrid(0.05, 0.5),
		fakeMetrics{},
		testLogger(t),
		cfg,
	)
}

func TestForecasterTrainsOnMissAndReuses(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48)}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	model, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, key, model.Key)
	assert.Equal(t, int32(1), source.fetches.Load())
	assert.Equal(t, 1, store.saves)

	// fresh model, no new data since training: no second fetch
	again, err := fc.TrainOrLoad(context.Background(), key, model.TrainedAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.TrainedAt, again.TrainedAt)
	assert.Equal(t, int32(1), source.fetches.Load())
}

func TestForecasterRetrainsWhenStale(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48)}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	_, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
	require.NoError(t, err)

	// data newer than the stored model forces a retrain
	_, err = fc.TrainOrLoad(context.Background(), key, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.fetches.Load())
}

func TestForecasterDegradesOnStorageFailure(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48)}
	store := newFakeModelStore()
	store.loadErr = errors.New("connection refused")
	store.saveErr = errors.New("connection refused")
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	// still serves a model, just never from cache
	model, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, model)

	_, err = fc.TrainOrLoad(context.Background(), key, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.fetches.Load())
}

func TestForecasterSingleFlightPerKey(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48), delay: 100 * time.Millisecond}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			model, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
			assert.NoError(t, err)
			assert.NotNil(t, model)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), source.fetches.Load())
	assert.Equal(t, 1, store.saves)
}

func TestForecasterNonBlockingSignalsInProgress(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48), delay: 200 * time.Millisecond}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
		assert.NoError(t, err)
		close(done)
	}()

	<-started
	time.Sleep(50 * time.Millisecond) // let the run enter the source fetch

	_, err := fc.TryTrainOrLoad(context.Background(), key, time.Time{})
	require.ErrorIs(t, err, models.ErrTrainingInProgress)
	<-done
}

func TestForecasterNonBlockingColdKeyTrainsInBackground(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48), delay: 100 * time.Millisecond}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	// No model yet: the run starts in the background and the caller
	// returns without waiting out the source delay.
	begin := time.Now()
	_, err := fc.TryTrainOrLoad(context.Background(), key, time.Time{})
	require.ErrorIs(t, err, models.ErrTrainingInProgress)
	assert.Less(t, time.Since(begin), 50*time.Millisecond)

	// Polling eventually picks up the finished run's model.
	require.Eventually(t, func() bool {
		model, err := fc.TryTrainOrLoad(context.Background(), key, time.Time{})
		return err == nil && model != nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), source.fetches.Load())
	assert.Equal(t, 1, store.saves)
}

func TestForecasterIndependentKeysTrainSeparately(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48)}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})

	var wg sync.WaitGroup
	for _, entity := range []string{"web-01", "web-02", "db-01"} {
		wg.Add(1)
		go func(entity string) {
			defer wg.Done()
			_, err := fc.TrainOrLoad(context.Background(), models.Key{Entity: entity, Metric: "cpu"}, time.Time{})
			assert.NoError(t, err)
		}(entity)
	}
	wg.Wait()

	assert.Equal(t, int32(3), source.fetches.Load())
	assert.Equal(t, 3, store.saves)
}

func TestForecasterInsufficientData(t *testing.T) {
	source := &fakeSource{series: trainingSeries(10)}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{})

	_, err := fc.TrainOrLoad(context.Background(), models.Key{Entity: "web-01", Metric: "cpu"}, time.Time{})

	var insufficient *models.DataInsufficientError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 10, insufficient.Points)
}

func TestForecasterTrainingTimeout(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48), delay: 500 * time.Millisecond}
	store := newFakeModelStore()
	fc := newTestForecaster(t, source, store, nil, ForecasterConfig{TrainingTimeout: 50 * time.Millisecond})

	_, err := fc.TrainOrLoad(context.Background(), models.Key{Entity: "web-01", Metric: "cpu"}, time.Time{})

	var failed *models.TrainingFailedError
	require.True(t, errors.As(err, &failed))
	assert.True(t, failed.Timeout)
}

func TestForecasterPredictPushesToSink(t *testing.T) {
	source := &fakeSource{series: trainingSeries(4 * 48)}
	store := newFakeModelStore()
	sink := &fakeSink{}
	fc := newTestForecaster(t, source, store, sink, ForecasterConfig{Confidence: 0.95})
	key := models.Key{Entity: "web-01", Metric: "cpu"}

	model, err := fc.TrainOrLoad(context.Background(), key, time.Time{})
	require.NoError(t, err)

	result, err := fc.Predict(context.Background(), model, 48, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, result.Points, 48)
	assert.Equal(t, 0.95, result.ConfidenceLevel)
	assert.Equal(t, key, result.Key)

	for i, p := range result.Points {
		assert.GreaterOrEqual(t, p.Value, 0.0, "point %d", i)
		assert.LessOrEqual(t, p.LowerBound, p.Value, "point %d", i)
		assert.GreaterOrEqual(t, p.UpperBound, p.Value, "point %d", i)
		if i > 0 {
			assert.Equal(t, 30*time.Minute, p.Timestamp.Sub(result.Points[i-1].Timestamp))
		}
	}

	assert.Equal(t, 1, sink.upserts)
	assert.Equal(t, result, sink.last)
}

func TestForecasterPredictRejectsBadArgs(t *testing.T) {
	fc := newTestForecaster(t, &fakeSource{}, newFakeModelStore(), nil, ForecasterConfig{})

	_, err := fc.Predict(context.Background(), nil, 10, time.Minute)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))

	model := &models.TrainedModel{Blob: []byte("{}")}
	_, err = fc.Predict(context.Background(), model, 0, time.Minute)
	require.True(t, errors.As(err, &verr))

	_, err = fc.Predict(context.Background(), model, 10, 0)
	require.True(t, errors.As(err, &verr))
}
