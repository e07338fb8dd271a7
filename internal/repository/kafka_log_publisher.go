package repository

import (
	"context"

	pkgkafka "Gavel/pkg/kafka"
)

// KafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher interface so aggregated log entries ship to a topic.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
