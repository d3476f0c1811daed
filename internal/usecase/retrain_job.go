package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	domsvc "LoadCast/internal/domain/service"
	"LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

const RetrainJobType = "retrain"

// RetrainPayload identifies the key to retrain.
type RetrainPayload struct {
	Entity string `json:"entity"`
	Metric string `json:"metric"`
}

// RetrainJob is the queue worker behind scheduled and on-demand
// retraining. Each message retrains one key and refreshes its stored
// forecast horizon.
type RetrainJob struct {
	fc        *Forecaster
	tracker   *LatestTracker
	detector  domsvc.AnomalyScorer
	horizon   int
	frequency time.Duration
	log       *logger.Logger
}

func NewRetrainJob(fc *Forecaster, tracker *LatestTracker, horizon int, frequency time.Duration, log *logger.Logger) *RetrainJob {
	if horizon <= 0 {
		horizon = 48
	}
	if frequency <= 0 {
		frequency = 30 * time.Minute
	}
	return &RetrainJob{fc: fc, tracker: tracker, horizon: horizon, frequency: frequency, log: log}
}

// WithDetector makes each retrain hand the fresh forecast to the anomaly
// detector, so the out-of-bounds check tracks the current model.
func (j *RetrainJob) WithDetector(d domsvc.AnomalyScorer) *RetrainJob {
	j.detector = d
	return j
}

func (j *RetrainJob) Name() string { return "retrain_key" }
func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	var p RetrainPayload
	switch v := payload.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("retrain payload: %w", err)
		}
	case RetrainPayload:
		p = v
	default:
		return fmt.Errorf("unexpected retrain payload type %T", payload)
	}
	if p.Entity == "" || p.Metric == "" {
		return fmt.Errorf("retrain payload missing key")
	}

	key := models.Key{Entity: p.Entity, Metric: p.Metric}
	model, err := j.fc.TrainOrLoad(ctx, key, j.tracker.Latest(key))
	if err != nil {
		return fmt.Errorf("retrain %s: %w", key, err)
	}
	result, err := j.fc.Predict(ctx, model, j.horizon, j.frequency)
	if err != nil {
		return fmt.Errorf("refresh forecast %s: %w", key, err)
	}
	if j.detector != nil {
		j.detector.SetForecast(key, result)
	}
	j.log.Info("retrained",
		logger.String("key", key.String()),
		logger.Int("horizon", j.horizon))
	return nil
}

var _ queue.Job = (*RetrainJob)(nil)

// RetrainScheduler periodically enqueues a retrain message for every
// tracked key. The queue owns retries and worker fan-out.
type RetrainScheduler struct {
	q         *queue.RedisQueue
	tracker   *LatestTracker
	store     domrepo.ModelStore
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewRetrainScheduler(q *queue.RedisQueue, tracker *LatestTracker, interval time.Duration, log *logger.Logger) *RetrainScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetrainScheduler{
		q:        q,
		tracker:  tracker,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// WithPruning enables model housekeeping: each sweep also drops models
// trained longer than retention ago.
func (s *RetrainScheduler) WithPruning(store domrepo.ModelStore, retention time.Duration) *RetrainScheduler {
	s.store = store
	s.retention = retention
	return s
}

func (s *RetrainScheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.enqueueAll(ctx)
				s.prune(ctx)
			}
		}
	}()
}

func (s *RetrainScheduler) Stop() { close(s.stopCh) }

func (s *RetrainScheduler) enqueueAll(ctx context.Context) {
	keys := s.tracker.Keys()
	for _, key := range keys {
		payload := RetrainPayload{Entity: key.Entity, Metric: key.Metric}
		if err := s.q.Enqueue(ctx, RetrainJobType, payload); err != nil {
			s.log.Warn("enqueue retrain failed",
				logger.String("key", key.String()),
				logger.Error(err))
		}
	}
	if len(keys) > 0 {
		s.log.Info("retrain sweep enqueued", logger.Int("keys", len(keys)))
	}
}

func (s *RetrainScheduler) prune(ctx context.Context) {
	if s.store == nil || s.retention <= 0 {
		return
	}
	n, err := s.store.PruneOlderThan(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.log.Warn("model prune failed", logger.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("stale models pruned", logger.Int("count", n))
	}
}
