package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func TestTickDerivesPriceFromElapsedIntervals(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))

	require.NoError(t, env.m.Tick(ctx, now.Add(2*time.Minute+30*time.Second)))
	require.Equal(t, int64(800), env.auction(t, "a-dutch").CurrentPrice)

	// A duplicated or late tick lands on the same derived value.
	require.NoError(t, env.m.Tick(ctx, now.Add(2*time.Minute+45*time.Second)))
	require.Equal(t, int64(800), env.auction(t, "a-dutch").CurrentPrice)

	require.Len(t, env.events.ofType(models.EventPriceTick), 1)
}

func TestTickExpiresAtFloor(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))

	require.NoError(t, env.m.Tick(ctx, now.Add(30*time.Minute)))

	got := env.auction(t, "a-dutch")
	require.Equal(t, int64(400), got.CurrentPrice)
	require.Equal(t, models.StatusExpired, got.Status)
	require.NotNil(t, got.ActualEnd)
	require.Len(t, env.events.ofType(models.EventAuctionEnded), 1)
}

func TestAcceptCurrentPriceWinsAtDecayedPrice(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))
	env.credit(t, "buyer-1", 2000)

	// No tick has run; acceptance re-derives the decayed price itself.
	bid, err := env.m.AcceptCurrentPrice(ctx, "buyer-1", now.Add(3*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(700), bid.Amount)

	got := env.auction(t, "a-dutch")
	require.Equal(t, models.StatusSold, got.Status)
	require.Equal(t, "buyer-1", got.WinnerID)
	require.Equal(t, int64(700), got.CurrentPrice)

	escrows := env.escrows(t)
	require.Len(t, escrows, 1)
	require.Equal(t, int64(700), escrows[0].Amount)
}

func TestAcceptCurrentPriceSecondBuyerLoses(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))
	env.credit(t, "buyer-1", 2000)
	env.credit(t, "buyer-2", 2000)

	_, err := env.m.AcceptCurrentPrice(ctx, "buyer-1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = env.m.AcceptCurrentPrice(ctx, "buyer-2", now.Add(time.Minute))
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotActive)
	require.Equal(t, int64(2000), env.available(t, "buyer-2"))
}

func TestAcceptCurrentPriceConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))

	const buyers = 5
	for i := 0; i < buyers; i++ {
		env.credit(t, bidderName(i), 2000)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := env.m.AcceptCurrentPrice(ctx, bidderName(i), now.Add(time.Minute)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, models.StatusSold, env.auction(t, "a-dutch").Status)
	require.Len(t, env.auctionHolds(t, "a-dutch"), 1)
}

func TestDescendingAuctionTakesNoBids(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, descendingAuction(now))
	env.credit(t, "bidder-1", 2000)

	_, err := env.m.SubmitBid(ctx, &BidRequest{BidderID: "bidder-1", Amount: 900, Now: now.Add(time.Minute)})
	require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
}

func TestAcceptCurrentPriceOnAscendingRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newMachineEnv(t, ascendingAuction(now))
	env.credit(t, "buyer-1", 2000)

	_, err := env.m.AcceptCurrentPrice(ctx, "buyer-1", now)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
}
