package usecase

import (
	"context"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/util"
)

// Tick applies the Dutch price decay. The price is derived from elapsed
// whole intervals since the scheduled start, so a late or duplicated tick
// lands on the same value (idempotent, drift-tolerant). Reaching the floor
// with no acceptance expires the auction.
func (m *Machine) Tick(ctx context.Context, now time.Time) error {
	var err error
	doErr := m.do(ctx, func(opCtx context.Context) {
		err = m.tick(opCtx, now)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (m *Machine) tick(ctx context.Context, now time.Time) error {
	a, err := m.auction(ctx)
	if err != nil {
		return err
	}
	if a.Format != models.FormatDescending || a.Status != models.StatusActive {
		return nil
	}
	if a.DecayInterval <= 0 || a.DecayStep <= 0 {
		return nil
	}

	elapsed := now.Sub(a.ScheduledStart)
	if elapsed < 0 {
		return nil
	}
	steps := int64(elapsed / a.DecayInterval)
	price := a.StartingPrice - steps*a.DecayStep
	if price < a.FloorPrice {
		price = a.FloorPrice
	}
	if price == a.CurrentPrice {
		return nil
	}

	next := *a
	next.CurrentPrice = price
	next.UpdatedAt = now

	if price == a.FloorPrice && a.FloorPrice < a.StartingPrice {
		// Floor reached without a buyer.
		next.Status = models.StatusExpired
		end := now
		next.ActualEnd = &end
	}

	if err := m.transition(ctx, a.Status, &next); err != nil {
		return err
	}

	m.metrics.RecordCurrentPrice(string(a.Format), price)
	m.publish(ctx, models.EventPriceTick, &models.PriceTickPayload{AuctionID: a.ID, Price: price})
	if next.Status == models.StatusExpired {
		m.publish(ctx, models.EventAuctionEnded, &models.AuctionEndedPayload{
			AuctionID: a.ID,
			Status:    models.StatusExpired,
		})
	}
	return nil
}

// AcceptCurrentPrice is the Dutch buy: the first call that observes an
// active auction wins at the standing price. Acceptance and decay ticks
// share the actor queue, so the check-and-transition is atomic and
// concurrent acceptors get exactly one winner; the rest fail with
// ErrAuctionNotActive.
func (m *Machine) AcceptCurrentPrice(ctx context.Context, buyerID string, now time.Time) (*models.Bid, error) {
	var (
		bid *models.Bid
		err error
	)
	doErr := m.do(ctx, func(opCtx context.Context) {
		bid, err = m.acceptCurrentPrice(opCtx, buyerID, now)
	})
	if doErr != nil {
		return nil, doErr
	}
	return bid, err
}

func (m *Machine) acceptCurrentPrice(ctx context.Context, buyerID string, now time.Time) (*models.Bid, error) {
	a, err := m.auction(ctx)
	if err != nil {
		return nil, err
	}
	if a.Format != models.FormatDescending {
		return nil, fmt.Errorf("auction %s is not descending: %w", a.ID, auctionerrors.ErrInvalidBid)
	}
	if err := m.checkActive(a, now); err != nil {
		return nil, err
	}

	// Re-derive the price the same way tick does: an acceptance racing a
	// missed decay interval must not sell at a stale value.
	price := a.CurrentPrice
	if a.DecayInterval > 0 && a.DecayStep > 0 {
		if elapsed := now.Sub(a.ScheduledStart); elapsed > 0 {
			p := a.StartingPrice - int64(elapsed/a.DecayInterval)*a.DecayStep
			if p < a.FloorPrice {
				p = a.FloorPrice
			}
			if p < price {
				price = p
			}
		}
	}

	hold, err := m.ledger.Hold(ctx, buyerID, a.ID, price, models.HoldReasonBuyNow)
	if err != nil {
		return nil, err
	}

	bid := &models.Bid{
		ID:          util.NewID(),
		AuctionID:   a.ID,
		BidderID:    buyerID,
		Amount:      price,
		SubmittedAt: now,
	}

	next := *a
	next.Status = models.StatusSold
	next.CurrentPrice = price
	next.WinningBidID = bid.ID
	next.WinnerID = buyerID
	next.WinningHoldID = hold.ID
	end := now
	next.ActualEnd = &end
	next.UpdatedAt = now

	if err := m.persistAcceptance(ctx, bid, &next, a.Status); err != nil {
		if relErr := m.ledger.Release(ctx, hold.ID); relErr != nil {
			m.logger.Error("compensating hold release failed",
				applogger.String("auction_id", a.ID),
				applogger.String("hold_id", hold.ID),
				applogger.Error(relErr))
		}
		return nil, err
	}

	m.metrics.RecordBidAccepted(string(a.Format))
	m.publish(ctx, models.EventBidAccepted, &models.BidAcceptedPayload{
		AuctionID:    a.ID,
		BidID:        bid.ID,
		BidderID:     buyerID,
		Amount:       price,
		CurrentPrice: price,
	})
	m.publish(ctx, models.EventAuctionEnded, &models.AuctionEndedPayload{
		AuctionID:  a.ID,
		Status:     models.StatusSold,
		WinnerID:   buyerID,
		FinalPrice: price,
	})
	m.settle(ctx, &next)
	return bid, nil
}

// DecayRunner drives Dutch price decay for one machine. It enqueues ticks
// at the auction's decay interval until the auction leaves the active
// state or the runner is stopped.
type DecayRunner struct {
	machine  *Machine
	interval time.Duration
	logger   *applogger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewDecayRunner starts ticking the machine at interval.
func NewDecayRunner(m *Machine, interval time.Duration, lgr *applogger.Logger) *DecayRunner {
	r := &DecayRunner{
		machine:  m,
		interval: interval,
		logger:   lgr,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *DecayRunner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			err := r.machine.Tick(ctx, now.UTC())
			cancel()
			if err != nil {
				r.logger.Warn("dutch tick failed",
					applogger.String("auction_id", r.machine.auctionID),
					applogger.Error(err))
			}
		}
	}
}

// Stop halts the runner and waits for the loop to exit.
func (r *DecayRunner) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}
