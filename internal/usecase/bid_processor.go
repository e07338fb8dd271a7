package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	"Gavel/internal/service/ratelimit"
	"Gavel/internal/services/features"
	"Gavel/internal/services/fraud"
	applogger "Gavel/pkg/logger"
)

// BidSubmission is the external bid entry point payload.
type BidSubmission struct {
	AuctionID string
	BidderID  string
	Amount    int64
	Timestamp time.Time
	SourceIP  string
	DeviceID  string
}

// ReviewDispatcher receives flagged alerts for asynchronous human review.
type ReviewDispatcher interface {
	Dispatch(alert *models.FraudAlert)
}

// BidProcessor validates, fraud-screens and routes bids to the right
// auction machine. Blocking fraud recommendations veto the bid before it
// reaches the machine; flagged bids go through with the alert attached for
// review.
type BidProcessor struct {
	registry *Registry
	scorer   *fraud.Scorer
	store    domrepo.Store
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	logger   *applogger.Logger
	review   ReviewDispatcher
	limiter  *ratelimit.Limiter

	submitTimeout time.Duration
	ipRate        float64
	ipBurst       float64
}

// NewBidProcessor creates the processor. review may be nil.
func NewBidProcessor(
	registry *Registry,
	scorer *fraud.Scorer,
	store domrepo.Store,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
	review ReviewDispatcher,
	submitTimeout time.Duration,
) *BidProcessor {
	return &BidProcessor{
		registry:      registry,
		scorer:        scorer,
		store:         store,
		events:        events,
		metrics:       metrics,
		logger:        lgr,
		review:        review,
		limiter:       ratelimit.New(),
		submitTimeout: submitTimeout,
		ipRate:        20,
		ipBurst:       40,
	}
}

// Submit runs the full intake path for one bid.
func (p *BidProcessor) Submit(ctx context.Context, sub *BidSubmission) (*models.Bid, error) {
	if sub.AuctionID == "" || sub.BidderID == "" {
		return nil, fmt.Errorf("processor: missing auction or bidder: %w", auctionerrors.ErrInvalidBid)
	}
	if sub.Amount <= 0 {
		return nil, fmt.Errorf("processor: non-positive amount: %w", auctionerrors.ErrInvalidBid)
	}
	now := sub.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if sub.SourceIP != "" && !p.limiter.Allow(sub.SourceIP, p.ipBurst, p.ipRate) {
		p.metrics.RecordBidRejected("ip_throttle")
		return nil, fmt.Errorf("processor: source throttled: %w", auctionerrors.ErrVelocityExceeded)
	}

	bid := &models.Bid{
		AuctionID:   sub.AuctionID,
		BidderID:    sub.BidderID,
		Amount:      sub.Amount,
		SubmittedAt: now,
		SourceIP:    sub.SourceIP,
		DeviceID:    sub.DeviceID,
	}

	bctx, err := p.bidContext(ctx, bid, now)
	if err != nil {
		return nil, err
	}

	dec := p.scorer.ScreenBid(ctx, bctx)
	for _, alert := range dec.Alerts {
		p.metrics.RecordFraudAlert(string(alert.Severity))
		p.publishAlert(ctx, alert)
		if !alert.Action.Blocking() && p.review != nil {
			p.review.Dispatch(alert)
		}
	}
	if dec.Blocked {
		p.metrics.RecordBidRejected("fraud")
		p.logger.Warn("bid blocked by fraud screening",
			applogger.String("auction_id", sub.AuctionID),
			applogger.String("bidder_id", sub.BidderID),
			applogger.Int("alerts", len(dec.Alerts)))
		if len(dec.Alerts) == 0 {
			return nil, fmt.Errorf("processor: %w", auctionerrors.ErrVelocityExceeded)
		}
		return nil, fmt.Errorf("processor: %w", auctionerrors.ErrFraudBlocked)
	}

	submitCtx := ctx
	if p.submitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, p.submitTimeout)
		defer cancel()
	}

	start := time.Now()
	accepted, err := p.registry.Machine(sub.AuctionID).SubmitBid(submitCtx, &BidRequest{
		BidderID: sub.BidderID,
		Amount:   sub.Amount,
		Now:      now,
		SourceIP: sub.SourceIP,
		DeviceID: sub.DeviceID,
	})
	p.metrics.RecordLatency("submit_bid", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordBidRejected(rejectionKind(err))
		return nil, err
	}

	p.touchProfile(ctx, accepted, now)
	return accepted, nil
}

// touchProfile refreshes the bidder's fraud signals after an accepted
// bid. Best effort: a lost update only staletens detector inputs.
func (p *BidProcessor) touchProfile(ctx context.Context, bid *models.Bid, now time.Time) {
	err := withRetry(ctx, p.store, func(tx domrepo.Tx) error {
		prof := &models.BidderProfile{BidderID: bid.BidderID, CreatedAt: now}
		if e, err := tx.Get("profile/" + bid.BidderID); err == nil {
			if existing, ok := e.(*models.BidderProfile); ok {
				// The stored profile is read concurrently by the fraud
				// screeners; update a copy and let the put swap it in.
				next := *existing
				next.KnownIPs = append([]string(nil), existing.KnownIPs...)
				next.KnownDevices = append([]string(nil), existing.KnownDevices...)
				prof = &next
			}
		}
		return tx.Put(features.UpdateOnBid(prof, bid, now))
	})
	if err != nil {
		p.logger.Warn("profile update failed",
			applogger.String("bidder_id", bid.BidderID), applogger.Error(err))
	}
}

// AcceptCurrentPrice routes a Dutch acceptance through the same bounded
// dispatch as bids.
func (p *BidProcessor) AcceptCurrentPrice(ctx context.Context, auctionID, buyerID string) (*models.Bid, error) {
	submitCtx := ctx
	if p.submitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, p.submitTimeout)
		defer cancel()
	}
	bid, err := p.registry.Machine(auctionID).AcceptCurrentPrice(submitCtx, buyerID, time.Now().UTC())
	if err != nil {
		p.metrics.RecordBidRejected(rejectionKind(err))
		return nil, err
	}
	return bid, nil
}

// bidContext assembles the fraud signals around one bid.
func (p *BidProcessor) bidContext(ctx context.Context, bid *models.Bid, now time.Time) (*models.BidContext, error) {
	bctx := &models.BidContext{Bid: bid, Now: now}

	e, err := p.store.Get(ctx, "auction/"+bid.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("processor: auction %s: %w", bid.AuctionID, err)
	}
	a, ok := e.(*models.Auction)
	if !ok {
		return nil, fmt.Errorf("processor: entity auction/%s is not an auction", bid.AuctionID)
	}
	bctx.Auction = a

	if prof := p.profile(ctx, bid.BidderID); prof != nil {
		bctx.Bidder = prof
	}
	if seller := p.profile(ctx, a.SellerID); seller != nil {
		bctx.SellerIPs = seller.KnownIPs
		bctx.SellerDevices = seller.KnownDevices
	}

	// Recent bidders and their devices come from the accepted bid log.
	err = p.store.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		log, err := getBidLog(tx, bid.AuctionID)
		if err != nil {
			return err
		}
		const tail = 10
		ids := log.BidIDs
		if len(ids) > tail {
			ids = ids[len(ids)-tail:]
		}
		for _, id := range ids {
			e, err := tx.Get("bid/" + id)
			if err != nil {
				if errors.Is(err, auctionerrors.ErrNotFound) {
					continue
				}
				return err
			}
			b, ok := e.(*models.Bid)
			if !ok {
				continue
			}
			bctx.RecentBidders = append(bctx.RecentBidders, b.BidderID)
			if b.DeviceID != "" && b.BidderID != bid.BidderID {
				bctx.AuctionDevices = append(bctx.AuctionDevices, b.DeviceID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("processor: bid context for auction %s: %w", bid.AuctionID, err)
	}
	return bctx, nil
}

func (p *BidProcessor) profile(ctx context.Context, userID string) *models.BidderProfile {
	if userID == "" {
		return nil
	}
	e, err := p.store.Get(ctx, "profile/"+userID)
	if err != nil {
		return nil
	}
	prof, _ := e.(*models.BidderProfile)
	return prof
}

func (p *BidProcessor) publishAlert(ctx context.Context, alert *models.FraudAlert) {
	if p.events == nil {
		return
	}
	ev := &models.Event{
		Type:       models.EventFraudAlertRaised,
		OccurredAt: time.Now().UTC(),
		Payload:    &models.FraudAlertPayload{Alert: alert},
	}
	if err := p.events.PublishEvent(ctx, ev); err != nil {
		p.logger.Warn("fraud event publish failed",
			applogger.String("alert_id", alert.ID), applogger.Error(err))
	}
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, auctionerrors.ErrInsufficientDeposit):
		return "insufficient_deposit"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return "auction_not_active"
	case errors.Is(err, auctionerrors.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}
