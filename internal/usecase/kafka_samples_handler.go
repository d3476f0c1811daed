package usecase

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	domsvc "LoadCast/internal/domain/service"
	pkgkafka "LoadCast/pkg/kafka"
)

// KafkaSamplesHandler consumes the samples topic: persists observations,
// tracks per-key freshness, scores each one against the rolling baseline
// and publishes alerts for flagged anomalies.
type KafkaSamplesHandler struct {
	topic    string
	writer   SampleWriter
	detector domsvc.AnomalyScorer
	tracker  *LatestTracker
	alerts   domrepo.AlertPublisher
	metrics  domrepo.Metrics
}

func NewKafkaSamplesHandler(
	topic string,
	writer SampleWriter,
	detector domsvc.AnomalyScorer,
	tracker *LatestTracker,
	alerts domrepo.AlertPublisher,
	metrics domrepo.Metrics,
) *KafkaSamplesHandler {
	return &KafkaSamplesHandler{
		topic:    topic,
		writer:   writer,
		detector: detector,
		tracker:  tracker,
		alerts:   alerts,
		metrics:  metrics,
	}
}

func (h *KafkaSamplesHandler) Topic() string { return h.topic }

// incoming message schema: {entity, metric, ts, value}; ts in epoch ms
func (h *KafkaSamplesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Entity string  `json:"entity"`
		Metric string  `json:"metric"`
		TS     int64   `json:"ts"`
		Value  float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Entity == "" || m.Metric == "" {
		h.metrics.RecordError("consumer_empty_key")
		return nil
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		h.metrics.RecordError("consumer_nonfinite")
		return nil
	}

	obs := &models.Observation{
		Key:       models.Key{Entity: m.Entity, Metric: m.Metric},
		Timestamp: time.UnixMilli(m.TS).UTC(),
		Value:     m.Value,
	}

	if err := h.writer.InsertSamples(ctx, []*models.Observation{obs}); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.tracker.Track(obs.Key, obs.Timestamp)

	score := h.detector.Observe(obs.Key, obs.Timestamp, obs.Value)
	if score.IsAnomaly {
		h.metrics.RecordAnomaly(obs.Key.Entity, obs.Key.Metric)
		if h.alerts != nil {
			if err := h.alerts.PublishAlert(ctx, &score); err != nil {
				h.metrics.RecordError("alert_publish")
			}
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSamplesHandler)(nil)
