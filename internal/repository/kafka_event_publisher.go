package repository

import (
	"context"
	"fmt"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	pkgkafka "Gavel/pkg/kafka"
	applogger "Gavel/pkg/logger"
)

// KafkaEventPublisher fans lifecycle events out on a Kafka topic. Events
// are keyed by auction ID so consumers see one auction's events in order.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string, lgr *applogger.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic, l: lgr}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, ev *models.Event) error {
	var key []byte
	if ev.AuctionID != "" {
		key = []byte(ev.AuctionID)
	}
	if err := p.producer.Publish(ctx, p.topic, key, ev); err != nil {
		if p.l != nil {
			p.l.Error("event publish failed",
				applogger.String("topic", p.topic),
				applogger.String("type", string(ev.Type)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
