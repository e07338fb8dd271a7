package usecase

import (
	"context"
	"testing"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func TestSealedBidsDoNotMovePrice(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))
	env.credit(t, "bidder-1", 5000)
	env.credit(t, "bidder-2", 5000)

	bid, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 2000, Now: now})
	require.NoError(t, err)
	require.True(t, bid.Sealed)

	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-2", Amount: 1500, Now: now})
	require.NoError(t, err)

	// Sealed submissions leave the public auction state untouched.
	got := env.auction(t, "a-sealed")
	require.Equal(t, int64(1000), got.CurrentPrice)
	require.Empty(t, got.WinnerID)
	require.Empty(t, got.WinningBidID)

	// Both bidders keep their holds until reveal.
	require.Len(t, env.auctionHolds(t, "a-sealed"), 2)
	require.Empty(t, env.events.ofType(models.EventOutbid))
}

func TestSealedBidBelowStartingPriceRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))
	env.credit(t, "bidder-1", 5000)

	_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 900, Now: now})
	require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
}

func TestRevealPicksHighestAmount(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))
	env.credit(t, "bidder-1", 5000)
	env.credit(t, "bidder-2", 5000)
	env.credit(t, "bidder-3", 5000)

	for _, b := range []struct {
		bidder string
		amount int64
	}{
		{"bidder-1", 1500},
		{"bidder-2", 2400},
		{"bidder-3", 1800},
	} {
		_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: b.bidder, Amount: b.amount, Now: now})
		require.NoError(t, err)
	}

	winner, err := env.m.Reveal(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "bidder-2", winner.BidderID)

	got := env.auction(t, "a-sealed")
	require.Equal(t, models.StatusSold, got.Status)
	require.True(t, got.Revealed)
	require.Equal(t, int64(2400), got.CurrentPrice)
	require.Equal(t, "bidder-2", got.WinnerID)

	// Losers get their deposits back, the winner's hold survives.
	require.Equal(t, int64(5000), env.available(t, "bidder-1"))
	require.Equal(t, int64(5000), env.available(t, "bidder-3"))
	require.Equal(t, int64(2600), env.available(t, "bidder-2"))
	require.Len(t, env.escrows(t), 1)
}

func TestRevealTieBreaksOnEarliestBid(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))
	env.credit(t, "bidder-1", 5000)
	env.credit(t, "bidder-2", 5000)

	_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 2000, Now: now.Add(time.Minute)})
	require.NoError(t, err)
	_, err = env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-2", Amount: 2000, Now: now.Add(2 * time.Minute)})
	require.NoError(t, err)

	winner, err := env.m.Reveal(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "bidder-1", winner.BidderID)
}

func TestRevealBeforeRevealTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))

	_, err := env.m.Reveal(ctx, now.Add(time.Minute))
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotActive)
}

func TestRevealReserveNotMetEndsWithoutWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	a := sealedAuction(now)
	a.ReservePrice = 3000
	env := newMachineEnv(t, a)
	env.credit(t, "bidder-1", 5000)

	_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 2000, Now: now})
	require.NoError(t, err)

	winner, err := env.m.Reveal(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Nil(t, winner)

	got := env.auction(t, a.ID)
	require.Equal(t, models.StatusEnded, got.Status)
	require.Empty(t, got.WinnerID)
	require.Equal(t, int64(5000), env.available(t, "bidder-1"))
	require.Empty(t, env.escrows(t))
}

func TestRevealRunsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, sealedAuction(now))
	env.credit(t, "bidder-1", 5000)

	_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 2000, Now: now})
	require.NoError(t, err)

	_, err = env.m.Reveal(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = env.m.Reveal(ctx, now.Add(2*time.Hour))
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotActive)
}

func TestRevealOnAscendingRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, ascendingAuction(now))

	_, err := env.m.Reveal(ctx, now)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
}
