package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
	"LoadCast/pkg/logger"
)

// ForecasterConfig bounds one training cycle.
type ForecasterConfig struct {
	// Lookback is the history window fetched for training.
	Lookback time.Duration
	// TrainingTimeout is the wall-clock budget per training run. The run
	// itself is not preempted; waiters get a timeout error and the
	// eventual result is kept or discarded by the store's version check.
	TrainingTimeout time.Duration
	// Confidence is the interval level for generated forecasts.
	Confidence float64
}

func (c ForecasterConfig) withDefaults() ForecasterConfig {
	if c.Lookback <= 0 {
		c.Lookback = 14 * 24 * time.Hour
	}
	if c.TrainingTimeout <= 0 {
		c.TrainingTimeout = 5 * time.Minute
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = 0.8
	}
	return c
}

// trainingRun is the single-flight slot for one key. done closes when the
// run finishes; model/err are valid after that.
type trainingRun struct {
	done  chan struct{}
	model *models.TrainedModel
	err   error
}

// Forecaster drives the per-key model lifecycle: load a fresh model if
// one exists, otherwise tune and train on recent history, persist, and
// serve predictions. At most one training run is in flight per key;
// distinct keys train independently.
type Forecaster struct {
	source  domrepo.SeriesSource
	store   domrepo.ModelStore
	sink    domrepo.PredictionsSink
	tuner   *Tuner
	trainer *Trainer
	backend service.ModelBackend
	grid    models.Grid
	metrics domrepo.Metrics
	log     *logger.Logger
	cfg     ForecasterConfig

	mu       sync.Mutex
	inflight map[models.Key]*trainingRun
}

func NewForecaster(
	source domrepo.SeriesSource,
	store domrepo.ModelStore,
	sink domrepo.PredictionsSink,
	tuner *Tuner,
	trainer *Trainer,
	backend service.ModelBackend,
	grid models.Grid,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg ForecasterConfig,
) *Forecaster {
	return &Forecaster{
		source:   source,
		store:    store,
		sink:     sink,
		tuner:    tuner,
		trainer:  trainer,
		backend:  backend,
		grid:     grid,
		metrics:  metrics,
		log:      log,
		cfg:      cfg.withDefaults(),
		inflight: make(map[models.Key]*trainingRun),
	}
}

// TrainOrLoad returns a usable model for key, reusing the stored one when
// it was trained after latestData. Blocks on an in-flight run for the
// same key instead of starting a duplicate.
func (f *Forecaster) TrainOrLoad(ctx context.Context, key models.Key, latestData time.Time) (*models.TrainedModel, error) {
	return f.trainOrLoad(ctx, key, latestData, true)
}

// TryTrainOrLoad is the non-blocking variant: it never awaits a training
// run. A fresh stored model is returned immediately; otherwise a run is
// started (or joined) in the background and ErrTrainingInProgress is
// returned so the caller can poll.
func (f *Forecaster) TryTrainOrLoad(ctx context.Context, key models.Key, latestData time.Time) (*models.TrainedModel, error) {
	return f.trainOrLoad(ctx, key, latestData, false)
}

func (f *Forecaster) trainOrLoad(ctx context.Context, key models.Key, latestData time.Time, block bool) (*models.TrainedModel, error) {
	if model, ok := f.loadFresh(ctx, key, latestData); ok {
		return model, nil
	}

	f.mu.Lock()
	run, running := f.inflight[key]
	if !running {
		run = &trainingRun{done: make(chan struct{})}
		f.inflight[key] = run
	}
	f.mu.Unlock()

	if running {
		if !block {
			return nil, models.ErrTrainingInProgress
		}
		return f.await(ctx, key, run)
	}

	// The run continues past caller cancellation; a superseded result is
	// dropped by the store's version check, not by interruption.
	go f.runTraining(context.WithoutCancel(ctx), key, run)
	if !block {
		return nil, models.ErrTrainingInProgress
	}
	return f.await(ctx, key, run)
}

// loadFresh returns a stored model only when it is newer than the latest
// known data. Storage failure degrades to retraining.
func (f *Forecaster) loadFresh(ctx context.Context, key models.Key, latestData time.Time) (*models.TrainedModel, bool) {
	model, ok, err := f.store.Load(ctx, key)
	if err != nil {
		f.metrics.RecordModelStoreOp("load", "error")
		f.log.Warn("model store unavailable, retraining",
			logger.String("key", key.String()), logger.Error(err))
		return nil, false
	}
	if !ok {
		f.metrics.RecordModelStoreOp("load", "miss")
		return nil, false
	}
	f.metrics.RecordModelStoreOp("load", "hit")
	if !latestData.IsZero() && !model.TrainedAt.After(latestData) {
		return nil, false
	}
	return model, true
}

func (f *Forecaster) await(ctx context.Context, key models.Key, run *trainingRun) (*models.TrainedModel, error) {
	timer := time.NewTimer(f.cfg.TrainingTimeout)
	defer timer.Stop()

	select {
	case <-run.done:
		return run.model, run.err
	case <-timer.C:
		return nil, &models.TrainingFailedError{
			Key:     key,
			Reason:  fmt.Sprintf("exceeded training budget %s", f.cfg.TrainingTimeout),
			Timeout: true,
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runTraining executes one full cycle: fetch, tune, train, persist. It
// owns the key's single-flight slot and releases it on completion.
func (f *Forecaster) runTraining(ctx context.Context, key models.Key, run *trainingRun) {
	start := time.Now()
	model, err := f.trainOnce(ctx, key)
	run.model, run.err = model, err

	outcome := "ok"
	if err != nil {
		outcome = "error"
		f.metrics.RecordError("training")
		f.log.Error("training failed",
			logger.String("key", key.String()), logger.Error(err))
	} else {
		f.log.Info("model trained",
			logger.String("key", key.String()),
			logger.Int("points", model.DataPoints),
			logger.Float64("mape", model.Quality.MAPE),
			logger.Bool("tuning_skipped", model.TuningSkipped))
	}
	f.metrics.RecordTraining(key.Entity, key.Metric, outcome, time.Since(start).Seconds())

	f.mu.Lock()
	delete(f.inflight, key)
	f.mu.Unlock()
	close(run.done)
}

func (f *Forecaster) trainOnce(ctx context.Context, key models.Key) (*models.TrainedModel, error) {
	end := time.Now().UTC()
	series, err := f.source.GetHistoricalSeries(ctx, key, end.Add(-f.cfg.Lookback), end)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", key, err)
	}
	series = series.Normalize()
	if series.Len() < f.trainer.MinPoints() {
		return nil, &models.DataInsufficientError{
			Key: key, Points: series.Len(), Min: f.trainer.MinPoints(), Op: "train",
		}
	}

	aug, err := features.Augment(series)
	if err != nil {
		return nil, err
	}

	tuned, err := f.tuner.Tune(ctx, aug, f.grid)
	if err != nil {
		return nil, err
	}

	model, err := f.trainer.Train(aug, tuned.Params)
	if err != nil {
		return nil, err
	}
	model.TuningSkipped = tuned.Skipped

	saved, err := f.store.Save(ctx, model)
	switch {
	case err != nil:
		// degraded mode: serve the freshly trained model uncached
		f.metrics.RecordModelStoreOp("save", "error")
		f.log.Warn("model save failed, serving uncached",
			logger.String("key", key.String()), logger.Error(err))
	case !saved:
		f.metrics.RecordModelStoreOp("save", "superseded")
		f.log.Info("model superseded by newer training window",
			logger.String("key", key.String()))
	default:
		f.metrics.RecordModelStoreOp("save", "ok")
	}

	return model, nil
}

// Predict extends the model's time axis by horizon steps at the given
// frequency and pushes the result to the predictions sink when one is
// configured.
func (f *Forecaster) Predict(ctx context.Context, model *models.TrainedModel, horizon int, frequency time.Duration) (*models.ForecastResult, error) {
	if model == nil {
		return nil, &models.ValidationError{Reason: "nil model"}
	}
	if horizon <= 0 {
		return nil, &models.ValidationError{Reason: "horizon must be positive"}
	}
	if frequency <= 0 {
		return nil, &models.ValidationError{Reason: "frequency must be positive"}
	}

	points, err := f.backend.Predict(model.Blob, horizon, frequency, f.cfg.Confidence)
	if err != nil {
		f.metrics.RecordError("forecast")
		return nil, fmt.Errorf("predict %s: %w", model.Key, err)
	}

	result := &models.ForecastResult{
		Key:             model.Key,
		ConfidenceLevel: f.cfg.Confidence,
		GeneratedAt:     time.Now().UTC(),
		Points:          points,
	}
	f.metrics.RecordForecast(model.Key.Entity, model.Key.Metric, len(points))

	if f.sink != nil {
		if _, err := f.sink.UpsertPredictions(ctx, model.Key, result); err != nil {
			f.metrics.RecordError("predictions_sink")
			f.log.Warn("predictions sink upsert failed",
				logger.String("key", model.Key.String()), logger.Error(err))
		}
	}
	return result, nil
}
