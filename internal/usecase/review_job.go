package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
	pkgqueue "Gavel/pkg/queue"
)

// ReviewJob consumes flagged fraud alerts off the review queue and lands
// them in the store so the admin API can list and resolve them.
type ReviewJob struct {
	msgType string
	store   domrepo.Store
	logger  *applogger.Logger
}

func NewReviewJob(msgType string, store domrepo.Store, lgr *applogger.Logger) *ReviewJob {
	return &ReviewJob{msgType: msgType, store: store, logger: lgr}
}

func (j *ReviewJob) Name() string { return "fraud_review_intake" }
func (j *ReviewJob) Type() string { return j.msgType }

func (j *ReviewJob) Handle(ctx context.Context, payload interface{}) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("review payload: %w", err)
		}
		raw = b
	}

	var alert models.FraudAlert
	if err := json.Unmarshal(raw, &alert); err != nil {
		return fmt.Errorf("unmarshal alert: %w", err)
	}
	if alert.ID == "" {
		return fmt.Errorf("review alert without id")
	}

	if err := j.store.Put(ctx, &alert); err != nil {
		return fmt.Errorf("persist alert %s: %w", alert.ID, err)
	}
	j.logger.Info("fraud alert queued for review",
		applogger.String("alert_id", alert.ID),
		applogger.String("subject", string(alert.SubjectType)+"/"+alert.SubjectID),
		applogger.Int("score", alert.Score))
	return nil
}

var _ pkgqueue.Job = (*ReviewJob)(nil)
