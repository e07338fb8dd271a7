package usecase

import (
	"context"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/util"
)

// EscrowCoordinator drives post-auction settlement:
// pending_deposit -> deposited -> in_transit -> delivered -> confirmed ->
// released, with a disputed branch from deposited/in_transit/delivered that
// resolves to released or refunded. Transition legality lives in the
// models transition table; this coordinator adds the release guards and
// the ledger side effects.
type EscrowCoordinator struct {
	store         domrepo.Store
	ledger        *DepositLedger
	events        domrepo.EventPublisher
	metrics       domrepo.Metrics
	logger        *applogger.Logger
	disputeWindow time.Duration
}

// NewEscrowCoordinator creates the settlement coordinator.
func NewEscrowCoordinator(
	store domrepo.Store,
	ledger *DepositLedger,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
	disputeWindow time.Duration,
) *EscrowCoordinator {
	return &EscrowCoordinator{
		store:         store,
		ledger:        ledger,
		events:        events,
		metrics:       metrics,
		logger:        lgr,
		disputeWindow: disputeWindow,
	}
}

// Open creates the escrow transaction for a won auction. An empty orderID
// gets a generated one. The buyer's winning hold is referenced, not owned.
func (c *EscrowCoordinator) Open(ctx context.Context, a *models.Auction, orderID string) (*models.EscrowTransaction, error) {
	if orderID == "" {
		orderID = util.NewID()
	}
	now := time.Now().UTC()
	esc := &models.EscrowTransaction{
		ID:        util.NewID(),
		OrderID:   orderID,
		AuctionID: a.ID,
		BuyerID:   a.WinnerID,
		SellerID:  a.SellerID,
		HoldID:    a.WinningHoldID,
		Amount:    a.CurrentPrice,
		State:     models.EscrowPendingDeposit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Put(ctx, esc); err != nil {
		return nil, fmt.Errorf("escrow: open for auction %s: %w", a.ID, err)
	}
	c.logger.Info("escrow opened",
		applogger.String("escrow_id", esc.ID),
		applogger.String("auction_id", a.ID),
		applogger.Int64("amount", esc.Amount))
	c.metrics.RecordEscrowTransition(string(esc.State))
	return esc, nil
}

// Get returns an escrow transaction.
func (c *EscrowCoordinator) Get(ctx context.Context, escrowID string) (*models.EscrowTransaction, error) {
	e, err := c.store.Get(ctx, "escrow/"+escrowID)
	if err != nil {
		return nil, fmt.Errorf("escrow %s: %w", escrowID, err)
	}
	esc, ok := e.(*models.EscrowTransaction)
	if !ok {
		return nil, fmt.Errorf("entity escrow/%s is not an escrow transaction", escrowID)
	}
	return esc, nil
}

// DepositReceived records the buyer's payment arriving in escrow.
func (c *EscrowCoordinator) DepositReceived(ctx context.Context, escrowID string) (*models.EscrowTransaction, error) {
	return c.advance(ctx, escrowID, models.EscrowDeposited, func(esc *models.EscrowTransaction) {})
}

// CarrierPickup records the carrier collecting the goods.
func (c *EscrowCoordinator) CarrierPickup(ctx context.Context, escrowID string) (*models.EscrowTransaction, error) {
	return c.advance(ctx, escrowID, models.EscrowInTransit, func(esc *models.EscrowTransaction) {})
}

// Delivered records the recipient signing for the goods and starts the
// dispute window.
func (c *EscrowCoordinator) Delivered(ctx context.Context, escrowID string) (*models.EscrowTransaction, error) {
	return c.advance(ctx, escrowID, models.EscrowDelivered, func(esc *models.EscrowTransaction) {
		esc.DisputeWindowEnd = time.Now().UTC().Add(c.disputeWindow)
	})
}

// Confirm moves a delivered escrow to confirmed. Confirmation may happen
// while the dispute window is still open; Release is what waits it out.
func (c *EscrowCoordinator) Confirm(ctx context.Context, escrowID string) (*models.EscrowTransaction, error) {
	return c.advance(ctx, escrowID, models.EscrowConfirmed, func(esc *models.EscrowTransaction) {})
}

// Dispute opens a dispute from deposited, in_transit or delivered.
func (c *EscrowCoordinator) Dispute(ctx context.Context, escrowID, reason string) (*models.EscrowTransaction, error) {
	return c.advance(ctx, escrowID, models.EscrowDisputed, func(esc *models.EscrowTransaction) {
		esc.DisputeReason = reason
	})
}

// Resolve closes a dispute: upheld refunds the buyer, rejected releases to
// the seller. Both outcomes are terminal.
func (c *EscrowCoordinator) Resolve(ctx context.Context, escrowID string, upheld bool) (*models.EscrowTransaction, error) {
	if upheld {
		esc, err := c.advance(ctx, escrowID, models.EscrowRefunded, func(esc *models.EscrowTransaction) {})
		if err != nil {
			return nil, err
		}
		// Refund: the buyer's hold is simply released, funds never move.
		if err := c.ledger.Release(ctx, esc.HoldID); err != nil {
			c.logger.Error("refund hold release failed",
				applogger.String("escrow_id", escrowID), applogger.Error(err))
		}
		return esc, nil
	}
	esc, err := c.advance(ctx, escrowID, models.EscrowReleased, func(esc *models.EscrowTransaction) {})
	if err != nil {
		return nil, err
	}
	if err := c.payOut(ctx, esc); err != nil {
		return nil, err
	}
	return esc, nil
}

// Release pays the seller. Fails with NotConfirmed unless the escrow is
// confirmed, and with DisputeWindowOpen before the window elapses. On
// success the buyer's hold converts to a payment exactly once and the
// seller's account is credited.
func (c *EscrowCoordinator) Release(ctx context.Context, escrowID string, now time.Time) (*models.EscrowTransaction, error) {
	esc, err := c.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.State != models.EscrowConfirmed {
		return nil, fmt.Errorf("escrow %s state %s: %w", escrowID, esc.State, auctionerrors.ErrNotConfirmed)
	}
	if now.Before(esc.DisputeWindowEnd) {
		return nil, fmt.Errorf("escrow %s window ends %s: %w",
			escrowID, esc.DisputeWindowEnd.Format(time.RFC3339), auctionerrors.ErrDisputeWindowOpen)
	}

	out, err := c.advance(ctx, escrowID, models.EscrowReleased, func(esc *models.EscrowTransaction) {})
	if err != nil {
		return nil, err
	}
	if err := c.payOut(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// payOut converts the buyer's hold to a payment and credits the seller.
// ConvertToPayment deletes the hold, so a duplicate release attempt fails
// with HoldNotFound instead of paying twice.
func (c *EscrowCoordinator) payOut(ctx context.Context, esc *models.EscrowTransaction) error {
	if _, err := c.ledger.ConvertToPayment(ctx, esc.HoldID, esc.OrderID); err != nil {
		return fmt.Errorf("escrow %s payout: %w", esc.ID, err)
	}
	if _, err := c.ledger.Credit(ctx, esc.SellerID, esc.Amount); err != nil {
		return fmt.Errorf("escrow %s seller credit: %w", esc.ID, err)
	}
	return nil
}

// advance applies one legal transition atomically and emits the state
// change event.
func (c *EscrowCoordinator) advance(ctx context.Context, escrowID string, to models.EscrowState, mutate func(*models.EscrowTransaction)) (*models.EscrowTransaction, error) {
	var (
		out  *models.EscrowTransaction
		from models.EscrowState
	)
	err := withRetry(ctx, c.store, func(tx domrepo.Tx) error {
		e, err := tx.Get("escrow/" + escrowID)
		if err != nil {
			return err
		}
		esc, ok := e.(*models.EscrowTransaction)
		if !ok {
			return fmt.Errorf("entity escrow/%s is not an escrow transaction", escrowID)
		}
		if !models.EscrowCanTransition(esc.State, to) {
			return fmt.Errorf("escrow %s %s -> %s: %w", escrowID, esc.State, to, auctionerrors.ErrInvalidTransition)
		}
		from = esc.State
		next := *esc
		next.State = to
		next.UpdatedAt = time.Now().UTC()
		mutate(&next)
		out = &next
		return tx.Put(&next)
	})
	if err != nil {
		return nil, fmt.Errorf("escrow advance: %w", err)
	}

	c.metrics.RecordEscrowTransition(string(to))
	if c.events != nil {
		ev := &models.Event{
			Type:       models.EventEscrowStateChanged,
			AuctionID:  out.AuctionID,
			OccurredAt: time.Now().UTC(),
			Payload: &models.EscrowStateChangedPayload{
				EscrowID:  out.ID,
				OrderID:   out.OrderID,
				FromState: from,
				ToState:   to,
			},
		}
		if err := c.events.PublishEvent(ctx, ev); err != nil {
			c.logger.Warn("escrow event publish failed",
				applogger.String("escrow_id", out.ID), applogger.Error(err))
			c.metrics.RecordError("event_publish")
		}
	}
	return out, nil
}
