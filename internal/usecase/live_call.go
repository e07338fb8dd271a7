package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/util"
)

// LiveOp is one operator command in a live-call auction.
type LiveOp string

const (
	LiveStartLot LiveOp = "start_lot"
	LiveCall     LiveOp = "call"
	LiveSold     LiveOp = "sold"
	LivePass     LiveOp = "pass"
	LiveNextLot  LiveOp = "next_lot"
)

// ApplyLiveOp advances a live-call auction one operator step. Calls
// escalate through the fixed 1-2-3 sequence ("going once", "going twice",
// "sold"); a fresh bid resets the count. sold is terminal for the lot and
// opens a settlement order; pass marks it unsold when below reserve.
func (m *Machine) ApplyLiveOp(ctx context.Context, op LiveOp, now time.Time) (*models.Lot, error) {
	var (
		lot *models.Lot
		err error
	)
	doErr := m.do(ctx, func(opCtx context.Context) {
		lot, err = m.applyLiveOp(opCtx, op, now)
	})
	if doErr != nil {
		return nil, doErr
	}
	return lot, err
}

func (m *Machine) applyLiveOp(ctx context.Context, op LiveOp, now time.Time) (*models.Lot, error) {
	a, err := m.auction(ctx)
	if err != nil {
		return nil, err
	}
	if a.Format != models.FormatLiveCall {
		return nil, fmt.Errorf("auction %s is not live-call: %w", a.ID, auctionerrors.ErrInvalidBid)
	}
	if a.Status != models.StatusActive {
		return nil, fmt.Errorf("auction %s status %s: %w", a.ID, a.Status, auctionerrors.ErrAuctionNotActive)
	}

	var out *models.Lot
	err = withRetry(ctx, m.store, func(tx domrepo.Tx) error {
		next := *a
		lot, err := getLot(tx, a.ID, a.CurrentLot)
		if err != nil && op != LiveStartLot && op != LiveNextLot {
			return err
		}

		switch op {
		case LiveStartLot:
			if lot != nil && lot.State != models.LotPending {
				return fmt.Errorf("lot %d already %s: %w", a.CurrentLot, lot.State, auctionerrors.ErrInvalidTransition)
			}
			if lot == nil {
				lot = &models.Lot{Number: a.CurrentLot, AuctionID: a.ID, Reserve: a.ReservePrice}
			}
			nl := *lot
			nl.State = models.LotOpen
			nl.Calls = 0
			out = &nl
			return tx.Put(&nl)

		case LiveCall:
			if lot.State != models.LotOpen && lot.State != models.LotGoingOnce && lot.State != models.LotGoingTwice {
				return fmt.Errorf("lot %d state %s: %w", lot.Number, lot.State, auctionerrors.ErrInvalidTransition)
			}
			nl := *lot
			nl.Calls++
			switch nl.Calls {
			case 1:
				nl.State = models.LotGoingOnce
			case 2:
				nl.State = models.LotGoingTwice
			default:
				return m.sellLot(tx, &next, &nl, now, &out)
			}
			out = &nl
			return tx.Put(&nl)

		case LiveSold:
			if lot.State == models.LotSold || lot.State == models.LotPassed {
				return fmt.Errorf("lot %d state %s: %w", lot.Number, lot.State, auctionerrors.ErrInvalidTransition)
			}
			nl := *lot
			return m.sellLot(tx, &next, &nl, now, &out)

		case LivePass:
			if lot.State == models.LotSold || lot.State == models.LotPassed {
				return fmt.Errorf("lot %d state %s: %w", lot.Number, lot.State, auctionerrors.ErrInvalidTransition)
			}
			nl := *lot
			nl.State = models.LotPassed
			out = &nl
			return tx.Put(&nl)

		case LiveNextLot:
			if lot != nil && lot.State != models.LotSold && lot.State != models.LotPassed {
				return fmt.Errorf("lot %d state %s: %w", a.CurrentLot, lot.State, auctionerrors.ErrInvalidTransition)
			}
			next.CurrentLot++
			next.CurrentPrice = next.StartingPrice
			next.WinnerID = ""
			next.WinningBidID = ""
			next.WinningHoldID = ""
			next.UpdatedAt = now
			if next.LotCount > 0 && next.CurrentLot >= next.LotCount {
				next.Status = models.StatusEnded
				end := now
				next.ActualEnd = &end
			}
			nl := &models.Lot{Number: next.CurrentLot, AuctionID: a.ID, State: models.LotPending, Reserve: a.ReservePrice}
			out = nl
			if err := tx.Put(nl); err != nil {
				return err
			}
			return tx.Put(&next)

		default:
			return fmt.Errorf("unknown live op %q: %w", op, auctionerrors.ErrInvalidTransition)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("live op %s on auction %s: %w", op, a.ID, err)
	}

	m.publish(ctx, models.EventLotCalled, &models.LotCalledPayload{
		AuctionID: a.ID,
		LotNumber: out.Number,
		State:     out.State,
		Calls:     out.Calls,
		HighBid:   out.HighBid,
	})
	if out.State == models.LotSold && out.OrderID != "" {
		// Settlement runs outside the lot transaction; the order ID on
		// the lot is what ties them together.
		if a2, err := m.auction(ctx); err == nil {
			m.settleOrder(ctx, a2, out.OrderID)
		}
	}
	return out, nil
}

// resetLotCalls restarts the hammer sequence after a fresh bid lands
// mid-call: "going once, going twice" starts over.
func (m *Machine) resetLotCalls(ctx context.Context, auctionID string, number int) {
	err := withRetry(ctx, m.store, func(tx domrepo.Tx) error {
		lot, err := getLot(tx, auctionID, number)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrNotFound) {
				return nil
			}
			return err
		}
		if lot.State != models.LotGoingOnce && lot.State != models.LotGoingTwice {
			return nil
		}
		nl := *lot
		nl.State = models.LotOpen
		nl.Calls = 0
		return tx.Put(&nl)
	})
	if err != nil {
		m.logger.Warn("lot call reset failed",
			applogger.String("auction_id", auctionID),
			applogger.Int("lot", number),
			applogger.Error(err))
	}
}

// sellLot marks the current lot sold at the standing high bid, failing
// with ReserveNotMet when the hammer would fall below reserve.
func (m *Machine) sellLot(tx domrepo.Tx, a *models.Auction, lot *models.Lot, now time.Time, out **models.Lot) error {
	lot.HighBid = a.CurrentPrice
	lot.HighBidder = a.WinnerID
	if lot.HighBidder == "" {
		return fmt.Errorf("lot %d has no bids: %w", lot.Number, auctionerrors.ErrReserveNotMet)
	}
	if lot.Reserve > 0 && lot.HighBid < lot.Reserve {
		return fmt.Errorf("lot %d high bid %d below reserve: %w", lot.Number, lot.HighBid, auctionerrors.ErrReserveNotMet)
	}
	lot.State = models.LotSold
	lot.Calls = 3
	lot.OrderID = util.NewID()
	*out = lot
	a.UpdatedAt = now
	if err := tx.Put(lot); err != nil {
		return err
	}
	return tx.Put(a)
}

func getLot(tx domrepo.Tx, auctionID string, number int) (*models.Lot, error) {
	e, err := tx.Get(fmt.Sprintf("lot/%s/%d", auctionID, number))
	if err != nil {
		return nil, err
	}
	lot, ok := e.(*models.Lot)
	if !ok {
		return nil, fmt.Errorf("entity lot/%s/%d is not a lot", auctionID, number)
	}
	return lot, nil
}
