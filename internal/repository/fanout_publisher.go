package repository

import (
	"context"
	"encoding/json"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
)

// Broadcaster fans a marshalled event frame out to live watchers.
type Broadcaster interface {
	Broadcast(ev *models.Event, frame []byte)
}

// FanoutPublisher sends every event to Kafka for downstream consumers and
// mirrors it onto the websocket hub for live watchers. Kafka delivery is
// authoritative; hub delivery is best-effort. Sealed bid amounts are
// stripped from the hub frames: competitors watching an auction learn that
// a sealed bid landed, never what it was, until reveal.
type FanoutPublisher struct {
	kafka domrepo.EventPublisher
	hub   Broadcaster
}

func NewFanoutPublisher(kafka domrepo.EventPublisher, hub Broadcaster) *FanoutPublisher {
	return &FanoutPublisher{kafka: kafka, hub: hub}
}

func (p *FanoutPublisher) PublishEvent(ctx context.Context, ev *models.Event) error {
	if p.hub != nil {
		if frame, err := json.Marshal(spectatorView(ev)); err == nil {
			p.hub.Broadcast(ev, frame)
		}
	}
	return p.kafka.PublishEvent(ctx, ev)
}

// spectatorView redacts what the public feed must not see. The original
// event is left untouched for the Kafka path.
func spectatorView(ev *models.Event) *models.Event {
	pl, ok := ev.Payload.(*models.BidAcceptedPayload)
	if !ok || !pl.Sealed {
		return ev
	}
	redacted := *pl
	redacted.Amount = 0
	out := *ev
	out.Payload = &redacted
	return &out
}

func (p *FanoutPublisher) Close() error {
	return p.kafka.Close()
}

var _ domrepo.EventPublisher = (*FanoutPublisher)(nil)
