package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "Gavel/internal/domain/repository"
	pkgkafka "Gavel/pkg/kafka"
)

// SettlementEventsHandler consumes carrier and payment updates from Kafka
// and drives the matching escrow transitions. Unknown kinds go to the DLQ
// via the consumer's retry policy.
type SettlementEventsHandler struct {
	topic   string
	escrow  *EscrowCoordinator
	metrics domrepo.Metrics
}

func NewSettlementEventsHandler(topic string, escrow *EscrowCoordinator, metrics domrepo.Metrics) *SettlementEventsHandler {
	return &SettlementEventsHandler{topic: topic, escrow: escrow, metrics: metrics}
}

func (h *SettlementEventsHandler) Topic() string { return h.topic }

// incoming message schema: {escrow_id, kind, at}
func (h *SettlementEventsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		EscrowID string `json:"escrow_id"`
		Kind     string `json:"kind"`
		At       int64  `json:"at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("settlement_unmarshal")
		return err
	}

	start := time.Now()
	var err error
	switch m.Kind {
	case "deposit_received":
		_, err = h.escrow.DepositReceived(ctx, m.EscrowID)
	case "carrier_pickup":
		_, err = h.escrow.CarrierPickup(ctx, m.EscrowID)
	case "delivered":
		_, err = h.escrow.Delivered(ctx, m.EscrowID)
	case "recipient_confirmed":
		_, err = h.escrow.Confirm(ctx, m.EscrowID)
	default:
		h.metrics.RecordError("settlement_unknown_kind")
		return fmt.Errorf("unknown settlement kind %q", m.Kind)
	}
	h.metrics.RecordLatency("settlement_apply_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("settlement_apply")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SettlementEventsHandler)(nil)
