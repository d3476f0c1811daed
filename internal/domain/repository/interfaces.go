package repository

import (
	"context"
	"time"

	"LoadCast/internal/domain/models"
)

// SampleStream is a live feed of samples pushed by a collector agent.
type SampleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Observation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SeriesSource reads historical samples. Read-only; the persistence
// engine behind it is an external collaborator.
type SeriesSource interface {
	GetHistoricalSeries(ctx context.Context, key models.Key, start, end time.Time) (models.MetricSeries, error)
	Health(ctx context.Context) error
}

// PredictionsSink receives generated forecasts. Upserts are idempotent
// per (entity, metric, timestamp).
type PredictionsSink interface {
	UpsertPredictions(ctx context.Context, key models.Key, result *models.ForecastResult) (int, error)
}

// BlobStore persists opaque model bytes under a string key. Load reports
// absence with ok=false rather than an error; transport or I/O failure is
// an error and callers map it to StorageUnavailableError.
type BlobStore interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// ModelStore is the keyed persistence layer for trained models.
type ModelStore interface {
	// Save persists the model, returning false without writing when the
	// stored model was trained on newer source data.
	Save(ctx context.Context, model *models.TrainedModel) (bool, error)
	// Load returns ok=false on a clean miss.
	Load(ctx context.Context, key models.Key) (*models.TrainedModel, bool, error)
	Delete(ctx context.Context, key models.Key) error
	// PruneOlderThan removes models trained before the cutoff and
	// returns how many were deleted.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertPublisher pushes anomaly scores that flagged.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, score *models.AnomalyScore) error
	Close() error
}

// Metrics is the observability recorder.
type Metrics interface {
	RecordTraining(entity, metric, outcome string, seconds float64)
	RecordForecast(entity, metric string, points int)
	RecordAnomaly(entity, metric string)
	RecordError(kind string)
	RecordModelStoreOp(op, outcome string)
}
