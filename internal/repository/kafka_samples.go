package repository

import (
	"context"

	"LoadCast/internal/domain/models"
	pkgkafka "LoadCast/pkg/kafka"
)

// sampleMessage is the wire schema on the samples topic. Timestamps are
// epoch milliseconds.
type sampleMessage struct {
	Entity string  `json:"entity"`
	Metric string  `json:"metric"`
	TS     int64   `json:"ts"`
	Value  float64 `json:"value"`
}

// KafkaSamplePublisher pushes observations onto the samples topic, keyed
// by entity|metric for per-key partition ordering.
type KafkaSamplePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSamplePublisher(producer *pkgkafka.Producer, topic string) *KafkaSamplePublisher {
	return &KafkaSamplePublisher{producer: producer, topic: topic}
}

func (p *KafkaSamplePublisher) PublishSamples(ctx context.Context, obs []*models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(obs))
	for _, o := range obs {
		if o == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key: []byte(o.Key.String()),
			Value: sampleMessage{
				Entity: o.Key.Entity,
				Metric: o.Key.Metric,
				TS:     o.Timestamp.UnixMilli(),
				Value:  o.Value,
			},
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
