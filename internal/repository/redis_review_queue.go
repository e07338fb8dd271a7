package repository

import (
	"context"
	"fmt"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	pkgqueue "Gavel/pkg/queue"
)

// ReviewMessageType is the queue message type carrying a fraud alert to
// the human-review worker.
const ReviewMessageType = "fraud_review"

// RedisReviewQueue publishes flagged alerts onto the Redis-backed job
// queue that the review worker consumes.
type RedisReviewQueue struct {
	queue *pkgqueue.RedisQueue
}

func NewRedisReviewQueue(queue *pkgqueue.RedisQueue) *RedisReviewQueue {
	return &RedisReviewQueue{queue: queue}
}

func (q *RedisReviewQueue) EnqueueReview(ctx context.Context, alert *models.FraudAlert) error {
	if err := q.queue.PublishMessage(ctx, ReviewMessageType, alert); err != nil {
		return fmt.Errorf("enqueue review %s: %w", alert.ID, err)
	}
	return nil
}

var _ domrepo.ReviewQueue = (*RedisReviewQueue)(nil)
