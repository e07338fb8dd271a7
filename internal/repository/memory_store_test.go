package repository

import (
	"context"
	"errors"
	"testing"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, &models.Bid{ID: "b1", Amount: 100}))

	ent, err := s.Get(ctx, "bid/b1")
	require.NoError(t, err)
	require.Equal(t, int64(100), ent.(*models.Bid).Amount)

	_, err = s.Get(ctx, "bid/missing")
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestTransactionCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		if err := tx.Put(&models.Bid{ID: "b1"}); err != nil {
			return err
		}
		return tx.Put(&models.Bid{ID: "b2"})
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bid/b1")
	require.NoError(t, err)
	_, err = s.Get(ctx, "bid/b2")
	require.NoError(t, err)
}

func TestTransactionDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		if err := tx.Put(&models.Bid{ID: "b1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "bid/b1")
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestTransactionReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, &models.Bid{ID: "b1", Amount: 100}))

	err := s.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		if err := tx.Put(&models.Bid{ID: "b1", Amount: 200}); err != nil {
			return err
		}
		ent, err := tx.Get("bid/b1")
		if err != nil {
			return err
		}
		require.Equal(t, int64(200), ent.(*models.Bid).Amount)

		if err := tx.Delete("bid/b1"); err != nil {
			return err
		}
		_, err = tx.Get("bid/b1")
		require.ErrorIs(t, err, auctionerrors.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bid/b1")
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestTransactionListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, &models.Bid{ID: "b1"}))
	require.NoError(t, s.Put(ctx, &models.Bid{ID: "b2"}))
	require.NoError(t, s.Put(ctx, &models.DepositHold{ID: "h1"}))

	err := s.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		// Staged writes and deletes are reflected in List.
		if err := tx.Put(&models.Bid{ID: "b3"}); err != nil {
			return err
		}
		if err := tx.Delete("bid/b1"); err != nil {
			return err
		}

		bids, err := tx.List("bid/")
		if err != nil {
			return err
		}
		require.Len(t, bids, 2)

		holds, err := tx.List("hold/")
		if err != nil {
			return err
		}
		require.Len(t, holds, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionHonorsContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunInTransaction(ctx, func(tx domrepo.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
