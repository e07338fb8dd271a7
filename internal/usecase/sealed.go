package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
)

// Reveal opens a sealed auction's bids. It runs once at or after the
// reveal time: loads every accepted bid, orders by amount descending with
// ties broken by earliest submission, assigns the winner, and releases the
// holds of all non-winners. The whole step is one actor operation, so no
// partial reveal is ever visible.
func (m *Machine) Reveal(ctx context.Context, now time.Time) (*models.Bid, error) {
	var (
		winner *models.Bid
		err    error
	)
	doErr := m.do(ctx, func(opCtx context.Context) {
		winner, err = m.reveal(opCtx, now)
	})
	if doErr != nil {
		return nil, doErr
	}
	return winner, err
}

func (m *Machine) reveal(ctx context.Context, now time.Time) (*models.Bid, error) {
	a, err := m.auction(ctx)
	if err != nil {
		return nil, err
	}
	if a.Format != models.FormatSealed {
		return nil, fmt.Errorf("auction %s is not sealed: %w", a.ID, auctionerrors.ErrInvalidBid)
	}
	if a.Revealed || a.Status != models.StatusActive {
		return nil, fmt.Errorf("auction %s status %s: %w", a.ID, a.Status, auctionerrors.ErrAuctionNotActive)
	}
	if now.Before(a.RevealTime) {
		return nil, fmt.Errorf("auction %s reveal at %s: %w", a.ID, a.RevealTime.Format(time.RFC3339), auctionerrors.ErrAuctionNotActive)
	}

	var bids []*models.Bid
	err = m.store.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		log, err := getBidLog(tx, a.ID)
		if err != nil {
			return err
		}
		bids = make([]*models.Bid, 0, len(log.BidIDs))
		for _, id := range log.BidIDs {
			e, err := tx.Get("bid/" + id)
			if err != nil {
				if errors.Is(err, auctionerrors.ErrNotFound) {
					continue
				}
				return err
			}
			if b, ok := e.(*models.Bid); ok {
				bids = append(bids, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reveal auction %s: %w", a.ID, err)
	}

	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
	})

	next := *a
	next.Revealed = true
	end := now
	next.ActualEnd = &end
	next.UpdatedAt = now

	var winner *models.Bid
	if len(bids) > 0 && a.ReserveMet(bids[0].Amount) {
		winner = bids[0]
		next.Status = models.StatusSold
		next.CurrentPrice = winner.Amount
		next.WinningBidID = winner.ID
		next.WinnerID = winner.BidderID
	} else {
		next.Status = models.StatusEnded
	}

	if winner != nil {
		// The winner's hold is the one tied to (bidder, auction).
		hold, err := m.winnerHold(ctx, winner.BidderID, a.ID)
		if err != nil {
			return nil, err
		}
		next.WinningHoldID = hold
	}

	if err := m.transition(ctx, a.Status, &next); err != nil {
		return nil, err
	}
	if err := m.ledger.ReleaseAuctionHolds(ctx, a.ID, next.WinningHoldID); err != nil {
		m.logger.Error("reveal hold release failed",
			applogger.String("auction_id", a.ID), applogger.Error(err))
	}

	m.publish(ctx, models.EventAuctionEnded, &models.AuctionEndedPayload{
		AuctionID:  a.ID,
		Status:     next.Status,
		WinnerID:   next.WinnerID,
		FinalPrice: next.CurrentPrice,
	})
	if winner != nil {
		m.settle(ctx, &next)
	}
	return winner, nil
}

func (m *Machine) winnerHold(ctx context.Context, bidderID, auctionID string) (string, error) {
	var holdID string
	err := m.store.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		holds, err := holdsForAuction(tx, auctionID)
		if err != nil {
			return err
		}
		for _, h := range holds {
			if h.AccountID == bidderID {
				holdID = h.ID
				return nil
			}
		}
		return auctionerrors.ErrHoldNotFound
	})
	if err != nil {
		return "", fmt.Errorf("winner hold for auction %s: %w", auctionID, err)
	}
	return holdID, nil
}
