package fraud

import (
	"context"
	"time"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	fraudmetrics "Gavel/internal/service/metrics"
	applogger "Gavel/pkg/logger"
)

// Scorer composes the shill, weight and velocity detectors into one risk
// decision. Detectors run independently; any blocking recommendation
// vetoes the subject, flag recommendations allow it with an attached
// alert.
type Scorer struct {
	shill    *ShillDetector
	weight   *WeightDetector
	velocity *VelocityControl
	sink     domrepo.AlertSink
	logger   *applogger.Logger
}

// NewScorer creates the composite scorer. sink may be nil.
func NewScorer(shill *ShillDetector, weight *WeightDetector, velocity *VelocityControl, sink domrepo.AlertSink, lgr *applogger.Logger) *Scorer {
	fraudmetrics.Register()
	return &Scorer{shill: shill, weight: weight, velocity: velocity, sink: sink, logger: lgr}
}

// Decision is the aggregate outcome for one subject.
type Decision struct {
	Blocked bool
	Alerts  []*models.FraudAlert
}

// ScreenBid evaluates a bid synchronously before it reaches the auction.
func (s *Scorer) ScreenBid(ctx context.Context, bctx *models.BidContext) Decision {
	start := time.Now()
	var dec Decision

	if s.velocity != nil && !s.velocity.Allow(bctx.Bid.AuctionID, bctx.Bid.BidderID, bctx.Now) {
		dec.Blocked = true
		fraudmetrics.Decisions.WithLabelValues("velocity", "block").Inc()
	}

	if s.shill != nil {
		if alert := s.shill.Evaluate(bctx); alert != nil {
			dec.Alerts = append(dec.Alerts, alert)
			if alert.Action.Blocking() {
				dec.Blocked = true
			}
			fraudmetrics.Decisions.WithLabelValues("shill_bidding", string(alert.Action)).Inc()
			s.audit(ctx, alert)
		}
	}

	fraudmetrics.Latency.WithLabelValues("screen_bid").Observe(time.Since(start).Seconds())
	return dec
}

// ScreenWeight evaluates an order's declared vs actual weight.
func (s *Scorer) ScreenWeight(ctx context.Context, orderID string, declared, actual float64) Decision {
	var dec Decision
	if s.weight == nil {
		return dec
	}
	alert := s.weight.Evaluate(orderID, declared, actual, time.Now().UTC())
	if alert == nil {
		fraudmetrics.Decisions.WithLabelValues("weight_fraud", "allow").Inc()
		return dec
	}
	dec.Alerts = append(dec.Alerts, alert)
	dec.Blocked = alert.Action.Blocking()
	fraudmetrics.Decisions.WithLabelValues("weight_fraud", string(alert.Action)).Inc()
	s.audit(ctx, alert)
	return dec
}

// audit persists the alert to the audit sink; failures are logged, never
// block the decision path.
func (s *Scorer) audit(ctx context.Context, alert *models.FraudAlert) {
	if s.sink == nil {
		return
	}
	if err := s.sink.StoreAlert(ctx, alert); err != nil {
		s.logger.Warn("fraud alert audit failed",
			applogger.String("alert_id", alert.ID),
			applogger.Error(err))
	}
}
