package usecase

import (
	"context"
	"testing"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	"Gavel/internal/repository"

	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	lgr := testLogger(t)
	ledger := NewDepositLedger(store, 0)
	escrow := NewEscrowCoordinator(store, ledger, &captureEvents{}, nopMetrics{}, lgr, time.Hour)
	reg := NewRegistry(store, ledger, escrow, &captureEvents{}, nopMetrics{}, lgr)
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })
	return reg, store
}

func TestCreateAuctionPersistsAndDefaults(t *testing.T) {
	ctx := context.Background()
	reg, store := newRegistry(t)

	a, err := reg.CreateAuction(ctx, &models.Auction{
		Title:         "barn find",
		SellerID:      "seller-1",
		Format:        models.FormatAscending,
		StartingPrice: 1000,
		BidIncrement:  100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, models.StatusScheduled, a.Status)
	require.Equal(t, int64(1000), a.CurrentPrice)

	ent, err := store.Get(ctx, "auction/"+a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, ent.(*models.Auction).ID)

	// The bid log is created alongside.
	_, err = store.Get(ctx, "bidlog/"+a.ID)
	require.NoError(t, err)
}

func TestCreateAuctionRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.CreateAuction(ctx, &models.Auction{ID: "dup", Format: models.FormatAscending})
	require.NoError(t, err)
	_, err = reg.CreateAuction(ctx, &models.Auction{ID: "dup", Format: models.FormatAscending})
	require.ErrorIs(t, err, auctionerrors.ErrConcurrentModification)
}

func TestMachineIsReusedPerAuction(t *testing.T) {
	reg, _ := newRegistry(t)

	m1 := reg.Machine("x")
	m2 := reg.Machine("x")
	require.Same(t, m1, m2)
	require.NotSame(t, m1, reg.Machine("y"))
}

func TestMachineForUnknownAuctionFailsOnUse(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Machine("missing").Snapshot(context.Background())
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}
