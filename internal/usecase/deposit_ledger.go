package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	"Gavel/pkg/util"
)

// DepositLedger owns deposit accounts and holds. Every mutation runs inside
// a store transaction so concurrent holds and releases on the same account
// never observe partial state. available = balance - sum(active holds) and
// is never negative.
type DepositLedger struct {
	store      domrepo.Store
	holdExpiry time.Duration
}

// NewDepositLedger creates a ledger over the transactional store.
// holdExpiry of zero means bid holds never expire on their own.
func NewDepositLedger(store domrepo.Store, holdExpiry time.Duration) *DepositLedger {
	return &DepositLedger{store: store, holdExpiry: holdExpiry}
}

// withRetry runs fn once more if the store reports a concurrent
// modification; the second failure is surfaced to the caller.
func withRetry(ctx context.Context, store domrepo.Store, fn func(tx domrepo.Tx) error) error {
	err := store.RunInTransaction(ctx, fn)
	if errors.Is(err, auctionerrors.ErrConcurrentModification) {
		err = store.RunInTransaction(ctx, fn)
	}
	return err
}

// Credit adds funds to an account, creating it if needed.
func (l *DepositLedger) Credit(ctx context.Context, accountID string, amount int64) (*models.DepositAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("ledger: credit %d: %w", amount, auctionerrors.ErrInvalidBid)
	}

	var out *models.DepositAccount
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		acct, err := getAccount(tx, accountID)
		if err != nil {
			if !errors.Is(err, auctionerrors.ErrNotFound) {
				return err
			}
			acct = &models.DepositAccount{UserID: accountID}
		}
		next := *acct
		next.Balance += amount
		next.UpdatedAt = time.Now().UTC()
		out = &next
		return tx.Put(&next)
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: credit account %s: %w", accountID, err)
	}
	return out, nil
}

// Debit takes funds out of an account. Held amounts stay untouched: the
// withdrawal fails with ErrInsufficientDeposit when amount exceeds the
// available balance.
func (l *DepositLedger) Debit(ctx context.Context, accountID string, amount int64) (*models.DepositAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("ledger: debit %d: %w", amount, auctionerrors.ErrInvalidBid)
	}

	var out *models.DepositAccount
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		acct, err := getAccount(tx, accountID)
		if err != nil {
			return err
		}
		holds, err := activeHolds(tx, acct)
		if err != nil {
			return err
		}
		if acct.Balance-sumHolds(holds) < amount {
			return auctionerrors.ErrInsufficientDeposit
		}
		next := *acct
		next.Balance -= amount
		next.UpdatedAt = time.Now().UTC()
		out = &next
		return tx.Put(&next)
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: debit account %s: %w", accountID, err)
	}
	return out, nil
}

// Account returns the account with its active holds and available balance.
func (l *DepositLedger) Account(ctx context.Context, accountID string) (*models.DepositAccount, []*models.DepositHold, int64, error) {
	var (
		acct      *models.DepositAccount
		holds     []*models.DepositHold
		available int64
	)
	err := l.store.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		a, err := getAccount(tx, accountID)
		if err != nil {
			return err
		}
		acct = a
		holds, err = activeHolds(tx, a)
		if err != nil {
			return err
		}
		available = a.Balance - sumHolds(holds)
		return nil
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("ledger: account %s: %w", accountID, err)
	}
	return acct, holds, available, nil
}

// Hold reserves amount for an auction. At most one active hold exists per
// (account, auction); a new hold for the same auction replaces the old one
// atomically. Fails with ErrInsufficientDeposit when available (excluding
// the hold being replaced) is below amount.
func (l *DepositLedger) Hold(ctx context.Context, accountID, auctionID string, amount int64, reason models.HoldReason) (*models.DepositHold, error) {
	var out *models.DepositHold
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		hold, err := l.holdInTx(tx, accountID, auctionID, amount, reason)
		if err != nil {
			return err
		}
		out = hold
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: hold for account %s auction %s: %w", accountID, auctionID, err)
	}
	return out, nil
}

// holdInTx reserves amount inside the caller's transaction, replacing any
// existing hold for the same (account, auction). The machine uses this to
// commit a bid acceptance and its reservation together, so a failed accept
// never leaves the bidder's previous hold deleted.
func (l *DepositLedger) holdInTx(tx domrepo.Tx, accountID, auctionID string, amount int64, reason models.HoldReason) (*models.DepositHold, error) {
	acct, err := getAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	holds, err := activeHolds(tx, acct)
	if err != nil {
		return nil, err
	}

	var reserved int64
	var replaced *models.DepositHold
	for _, h := range holds {
		if h.AuctionID == auctionID {
			replaced = h
			continue
		}
		reserved += h.Amount
	}
	if acct.Balance-reserved < amount {
		return nil, fmt.Errorf("available %d below %d: %w",
			acct.Balance-reserved, amount, auctionerrors.ErrInsufficientDeposit)
	}

	now := time.Now().UTC()
	hold := &models.DepositHold{
		ID:        util.NewID(),
		AccountID: accountID,
		AuctionID: auctionID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: now,
	}
	if l.holdExpiry > 0 && reason == models.HoldReasonBid {
		exp := now.Add(l.holdExpiry)
		hold.ExpiresAt = &exp
	}

	next := *acct
	next.HoldIDs = append([]string(nil), acct.HoldIDs...)
	if replaced != nil {
		next.HoldIDs = removeID(next.HoldIDs, replaced.ID)
		if err := tx.Delete(replaced.EntityID()); err != nil {
			return nil, err
		}
	}
	next.HoldIDs = append(next.HoldIDs, hold.ID)
	next.UpdatedAt = now

	if err := tx.Put(hold); err != nil {
		return nil, err
	}
	if err := tx.Put(&next); err != nil {
		return nil, err
	}
	return hold, nil
}

// Release frees a hold. Releasing an already-released hold is a no-op.
func (l *DepositLedger) Release(ctx context.Context, holdID string) error {
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		hold, err := getHold(tx, holdID)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrNotFound) {
				return nil // idempotent
			}
			return err
		}
		return dropHold(tx, hold)
	})
	if err != nil {
		return fmt.Errorf("ledger: release hold %s: %w", holdID, err)
	}
	return nil
}

// ConvertToPayment debits the account by the hold amount, deletes the hold
// and records the payment, all atomically. Fails with ErrHoldNotFound if
// the hold was already released or converted.
func (l *DepositLedger) ConvertToPayment(ctx context.Context, holdID, orderID string) (*models.Payment, error) {
	var out *models.Payment
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		hold, err := getHold(tx, holdID)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrNotFound) {
				return auctionerrors.ErrHoldNotFound
			}
			return err
		}
		acct, err := getAccount(tx, hold.AccountID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		next := *acct
		next.Balance -= hold.Amount
		next.HoldIDs = removeID(append([]string(nil), acct.HoldIDs...), hold.ID)
		next.UpdatedAt = now

		payment := &models.Payment{
			ID:        util.NewID(),
			OrderID:   orderID,
			AccountID: hold.AccountID,
			Amount:    hold.Amount,
			CreatedAt: now,
		}
		if err := tx.Delete(hold.EntityID()); err != nil {
			return err
		}
		if err := tx.Put(&next); err != nil {
			return err
		}
		if err := tx.Put(payment); err != nil {
			return err
		}
		out = payment
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: convert hold %s: %w", holdID, err)
	}
	return out, nil
}

// ReleaseAuctionHolds frees every hold tied to an auction, optionally
// keeping one (the winner's). Used on cancellation and sealed reveal.
func (l *DepositLedger) ReleaseAuctionHolds(ctx context.Context, auctionID, keepHoldID string) error {
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		holds, err := holdsForAuction(tx, auctionID)
		if err != nil {
			return err
		}
		for _, h := range holds {
			if h.ID == keepHoldID {
				continue
			}
			if err := dropHold(tx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: release holds for auction %s: %w", auctionID, err)
	}
	return nil
}

// SweepExpired releases holds past their expiry. Returns the number freed.
func (l *DepositLedger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := withRetry(ctx, l.store, func(tx domrepo.Tx) error {
		n = 0
		holds, err := allHolds(tx)
		if err != nil {
			return err
		}
		for _, h := range holds {
			if !h.Expired(now) {
				continue
			}
			if err := dropHold(tx, h); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: sweep expired holds: %w", err)
	}
	return n, nil
}

// --- transaction helpers ---

func getAccount(tx domrepo.Tx, accountID string) (*models.DepositAccount, error) {
	e, err := tx.Get("account/" + accountID)
	if err != nil {
		return nil, err
	}
	acct, ok := e.(*models.DepositAccount)
	if !ok {
		return nil, fmt.Errorf("entity account/%s is not an account", accountID)
	}
	return acct, nil
}

func getHold(tx domrepo.Tx, holdID string) (*models.DepositHold, error) {
	e, err := tx.Get("hold/" + holdID)
	if err != nil {
		return nil, err
	}
	hold, ok := e.(*models.DepositHold)
	if !ok {
		return nil, fmt.Errorf("entity hold/%s is not a hold", holdID)
	}
	return hold, nil
}

func activeHolds(tx domrepo.Tx, acct *models.DepositAccount) ([]*models.DepositHold, error) {
	holds := make([]*models.DepositHold, 0, len(acct.HoldIDs))
	for _, id := range acct.HoldIDs {
		h, err := getHold(tx, id)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, nil
}

func dropHold(tx domrepo.Tx, hold *models.DepositHold) error {
	acct, err := getAccount(tx, hold.AccountID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return tx.Delete(hold.EntityID())
		}
		return err
	}
	next := *acct
	next.HoldIDs = removeID(append([]string(nil), acct.HoldIDs...), hold.ID)
	next.UpdatedAt = time.Now().UTC()
	if err := tx.Delete(hold.EntityID()); err != nil {
		return err
	}
	return tx.Put(&next)
}

func holdsForAuction(tx domrepo.Tx, auctionID string) ([]*models.DepositHold, error) {
	all, err := allHolds(tx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, h := range all {
		if h.AuctionID == auctionID {
			out = append(out, h)
		}
	}
	return out, nil
}

func allHolds(tx domrepo.Tx) ([]*models.DepositHold, error) {
	entities, err := tx.List("hold/")
	if err != nil {
		return nil, err
	}
	holds := make([]*models.DepositHold, 0, len(entities))
	for _, e := range entities {
		if h, ok := e.(*models.DepositHold); ok {
			holds = append(holds, h)
		}
	}
	return holds, nil
}

func sumHolds(holds []*models.DepositHold) int64 {
	var total int64
	for _, h := range holds {
		total += h.Amount
	}
	return total
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
