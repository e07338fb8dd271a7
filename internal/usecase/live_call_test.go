package usecase

import (
	"context"
	"testing"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func TestLiveCallEscalationSellsOnThirdCall(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))
	env.credit(t, "bidder-1", 5000)

	lot, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)
	require.Equal(t, models.LotOpen, lot.State)

	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 500, Now: now})
	require.NoError(t, err)

	lot, err = env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)
	require.Equal(t, models.LotGoingOnce, lot.State)
	require.Equal(t, 1, lot.Calls)

	lot, err = env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)
	require.Equal(t, models.LotGoingTwice, lot.State)
	require.Equal(t, 2, lot.Calls)

	lot, err = env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)
	require.Equal(t, models.LotSold, lot.State)
	require.Equal(t, 3, lot.Calls)
	require.Equal(t, int64(500), lot.HighBid)
	require.Equal(t, "bidder-1", lot.HighBidder)
	require.NotEmpty(t, lot.OrderID)

	// The hammer opens a settlement order tied to the lot.
	escrows := env.escrows(t)
	require.Len(t, escrows, 1)
	require.Equal(t, lot.OrderID, escrows[0].OrderID)
	require.Equal(t, "bidder-1", escrows[0].BuyerID)
}

func TestLiveCallFreshBidResetsCalls(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))
	env.credit(t, "bidder-1", 5000)
	env.credit(t, "bidder-2", 5000)

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)
	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 500, Now: now})
	require.NoError(t, err)

	_, err = env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)
	_, err = env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)

	// "Going twice" interrupted by a new bid: the sequence starts over.
	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-2", Amount: 600, Now: now})
	require.NoError(t, err)

	lot, err := env.m.ApplyLiveOp(ctx, LiveCall, now)
	require.NoError(t, err)
	require.Equal(t, models.LotGoingOnce, lot.State)
	require.Equal(t, 1, lot.Calls)
}

func TestLiveSoldWithoutBidsRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)

	_, err = env.m.ApplyLiveOp(ctx, LiveSold, now)
	require.ErrorIs(t, err, auctionerrors.ErrReserveNotMet)
}

func TestLiveSoldBelowReserveRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	a := liveCallAuction(now)
	a.ReservePrice = 1000
	env := newMachineEnv(t, a)
	env.credit(t, "bidder-1", 5000)

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)
	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 500, Now: now})
	require.NoError(t, err)

	_, err = env.m.ApplyLiveOp(ctx, LiveSold, now)
	require.ErrorIs(t, err, auctionerrors.ErrReserveNotMet)
}

func TestLivePassMarksLotUnsold(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)

	lot, err := env.m.ApplyLiveOp(ctx, LivePass, now)
	require.NoError(t, err)
	require.Equal(t, models.LotPassed, lot.State)
	require.Empty(t, env.escrows(t))
}

func TestLiveNextLotAdvancesAndEndsAuction(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))
	env.credit(t, "bidder-1", 5000)

	// Lot 0 sells.
	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)
	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 500, Now: now})
	require.NoError(t, err)
	_, err = env.m.ApplyLiveOp(ctx, LiveSold, now)
	require.NoError(t, err)

	lot, err := env.m.ApplyLiveOp(ctx, LiveNextLot, now)
	require.NoError(t, err)
	require.Equal(t, 1, lot.Number)
	require.Equal(t, models.LotPending, lot.State)

	got := env.auction(t, "a-live")
	require.Equal(t, 1, got.CurrentLot)
	require.Equal(t, int64(500), got.CurrentPrice)
	require.Empty(t, got.WinnerID)
	require.Equal(t, models.StatusActive, got.Status)

	// Lot 1 passes; advancing past the last lot ends the auction.
	_, err = env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)
	_, err = env.m.ApplyLiveOp(ctx, LivePass, now)
	require.NoError(t, err)
	_, err = env.m.ApplyLiveOp(ctx, LiveNextLot, now)
	require.NoError(t, err)

	got = env.auction(t, "a-live")
	require.Equal(t, models.StatusEnded, got.Status)
	require.NotNil(t, got.ActualEnd)
}

func TestLiveNextLotRequiresSettledLot(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, liveCallAuction(now))

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.NoError(t, err)

	_, err = env.m.ApplyLiveOp(ctx, LiveNextLot, now)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidTransition)
}

func TestLiveOpOnAscendingRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, ascendingAuction(now))

	_, err := env.m.ApplyLiveOp(ctx, LiveStartLot, now)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
}
