package repository

import (
	"context"
	"fmt"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	pkgkafka "LoadCast/pkg/kafka"
)

// KafkaAlertPublisher implements AlertPublisher over a Kafka topic.
// Messages are keyed by entity|metric so one key's alerts stay ordered
// within a partition.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) domrepo.AlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, score *models.AnomalyScore) error {
	if score == nil {
		return fmt.Errorf("nil anomaly score")
	}
	return p.producer.Publish(ctx, p.topic, []byte(score.Key.String()), score)
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
