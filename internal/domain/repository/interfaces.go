package repository

import (
	"context"

	"Gavel/internal/domain/models"
)

// Entity is anything the transactional store can persist. IDs are
// namespaced by entity kind (e.g. "auction/<id>").
type Entity interface {
	EntityID() string
}

// Tx is the store view inside a transaction. Reads and writes through a Tx
// commit or roll back together.
type Tx interface {
	Get(id string) (Entity, error)
	Put(e Entity) error
	Delete(id string) error
	// List returns every entity whose ID starts with prefix, in no
	// particular order.
	List(prefix string) ([]Entity, error)
}

// Store is the abstract transactional persistence boundary. The engine
// never assumes a specific storage engine behind it. Implementations may
// surface optimistic lock conflicts as ErrConcurrentModification.
type Store interface {
	Get(ctx context.Context, id string) (Entity, error)
	Put(ctx context.Context, e Entity) error
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// EventPublisher fans lifecycle events out to the notification
// collaborator. The engine only produces events, never performs delivery.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *models.Event) error
	Close() error
}

// AlertSink persists fraud alerts for audit, independent of the
// transactional store.
type AlertSink interface {
	StoreAlert(ctx context.Context, alert *models.FraudAlert) error
	Close() error
}

// ReviewQueue hands flagged alerts to the asynchronous human-review worker.
type ReviewQueue interface {
	EnqueueReview(ctx context.Context, alert *models.FraudAlert) error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordBidAccepted(format string)
	RecordBidRejected(reason string)
	RecordFraudAlert(severity string)
	RecordEscrowTransition(to string)
	RecordCurrentPrice(format string, price int64)
	RecordActiveAuctions(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
