package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	"Gavel/internal/repository"
	icache "Gavel/internal/service/cache"
	"Gavel/internal/services/fraud"

	"github.com/stretchr/testify/require"
)

type captureReview struct {
	mu     sync.Mutex
	alerts []*models.FraudAlert
}

func (c *captureReview) Dispatch(alert *models.FraudAlert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	c.mu.Unlock()
}

func (c *captureReview) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

type processorEnv struct {
	store  *repository.MemoryStore
	events *captureEvents
	review *captureReview
	ledger *DepositLedger
	proc   *BidProcessor
}

func newProcessorEnv(t *testing.T, maxPerMinute int, a *models.Auction) *processorEnv {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	events := &captureEvents{}
	review := &captureReview{}
	lgr := testLogger(t)
	ledger := NewDepositLedger(store, 0)
	escrow := NewEscrowCoordinator(store, ledger, events, nopMetrics{}, lgr, time.Hour)
	registry := NewRegistry(store, ledger, escrow, events, nopMetrics{}, lgr)
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	shill := fraud.NewShillDetector(fraud.DefaultShillWeights(), 80, 60, 7*24*time.Hour, time.Minute, 0.3)
	weight := fraud.NewWeightDetector(10, 5, 3)
	velocity := fraud.NewVelocityControl(maxPerMinute, 0, 30*time.Second, icache.NewTTLCache())
	scorer := fraud.NewScorer(shill, weight, velocity, nil, lgr)

	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, &models.BidLog{AuctionID: a.ID}))

	proc := NewBidProcessor(registry, scorer, store, events, nopMetrics{}, lgr, review, 2*time.Second)
	return &processorEnv{store: store, events: events, review: review, ledger: ledger, proc: proc}
}

func (e *processorEnv) credit(t *testing.T, accountID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), accountID, amount)
	require.NoError(t, err)
}

func TestProcessorValidatesSubmission(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))

	tests := []struct {
		name string
		sub  *BidSubmission
	}{
		{"missing auction", &BidSubmission{BidderID: "b", Amount: 1000}},
		{"missing bidder", &BidSubmission{AuctionID: "a-asc", Amount: 1000}},
		{"zero amount", &BidSubmission{AuctionID: "a-asc", BidderID: "b"}},
		{"negative amount", &BidSubmission{AuctionID: "a-asc", BidderID: "b", Amount: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.proc.Submit(ctx, tt.sub)
			require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
		})
	}
}

func TestProcessorAcceptsCleanBidAndTouchesProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))
	env.credit(t, "bidder-1", 5000)

	bid, err := env.proc.Submit(ctx, &BidSubmission{
		AuctionID: "a-asc",
		BidderID:  "bidder-1",
		Amount:    1000,
		Timestamp: now,
		SourceIP:  "10.0.0.1",
		DeviceID:  "dev-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, bid.ID)
	require.Zero(t, env.review.count())

	ent, err := env.store.Get(ctx, "profile/bidder-1")
	require.NoError(t, err)
	prof, ok := ent.(*models.BidderProfile)
	require.True(t, ok)
	require.Equal(t, now, prof.LastBidAt)
	require.Contains(t, prof.KnownIPs, "10.0.0.1")
	require.Contains(t, prof.KnownDevices, "dev-1")
	require.Greater(t, prof.ActivityScore, 0.0)
}

func TestProfileUpdateLeavesSharedObjectUntouched(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))
	env.credit(t, "bidder-1", 10000)

	_, err := env.proc.Submit(ctx, &BidSubmission{
		AuctionID: "a-asc", BidderID: "bidder-1", Amount: 1000,
		Timestamp: now, SourceIP: "10.0.0.1",
	})
	require.NoError(t, err)

	ent, err := env.store.Get(ctx, "profile/bidder-1")
	require.NoError(t, err)
	held, ok := ent.(*models.BidderProfile)
	require.True(t, ok)
	snapshot := *held

	_, err = env.proc.Submit(ctx, &BidSubmission{
		AuctionID: "a-asc", BidderID: "bidder-1", Amount: 1100,
		Timestamp: now.Add(time.Second), SourceIP: "10.0.0.2",
	})
	require.NoError(t, err)

	// The profile handed out before the second bid is never written
	// through; readers holding it see a consistent snapshot.
	require.Equal(t, snapshot.LastBidAt, held.LastBidAt)
	require.Equal(t, snapshot.ActivityScore, held.ActivityScore)
	require.Equal(t, len(snapshot.KnownIPs), len(held.KnownIPs))

	ent, err = env.store.Get(ctx, "profile/bidder-1")
	require.NoError(t, err)
	fresh, ok := ent.(*models.BidderProfile)
	require.True(t, ok)
	require.Equal(t, now.Add(time.Second), fresh.LastBidAt)
	require.Contains(t, fresh.KnownIPs, "10.0.0.2")
}

func TestConcurrentSubmitsForOneBidder(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))
	env.credit(t, "bidder-1", 1_000_000)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.proc.Submit(ctx, &BidSubmission{
				AuctionID: "a-asc",
				BidderID:  "bidder-1",
				Amount:    int64(1000 + i*100),
				Timestamp: now,
				SourceIP:  fmt.Sprintf("10.0.1.%d", i),
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
	}
	require.GreaterOrEqual(t, accepted, 1)

	ent, err := env.store.Get(ctx, "profile/bidder-1")
	require.NoError(t, err)
	prof, ok := ent.(*models.BidderProfile)
	require.True(t, ok)
	require.False(t, prof.LastBidAt.IsZero())
	require.NotEmpty(t, prof.KnownIPs)
}

func TestProcessorBlocksShillBid(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))
	env.credit(t, "bidder-1", 5000)

	// Seller and bidder share IP and device: 50 + 40 = 90 >= block.
	require.NoError(t, env.store.Put(ctx, &models.BidderProfile{
		BidderID:      "seller-1",
		KnownIPs:      []string{"9.9.9.9"},
		KnownDevices:  []string{"dev-7"},
		AccountAge:    365 * 24 * time.Hour,
		ActivityScore: 0.9,
		CreatedAt:     now.Add(-365 * 24 * time.Hour),
	}))

	_, err := env.proc.Submit(ctx, &BidSubmission{
		AuctionID: "a-asc",
		BidderID:  "bidder-1",
		Amount:    1000,
		Timestamp: now,
		SourceIP:  "9.9.9.9",
		DeviceID:  "dev-7",
	})
	require.ErrorIs(t, err, auctionerrors.ErrFraudBlocked)

	// Blocked bids never reach the ledger, and blocking alerts skip the
	// review queue.
	require.Empty(t, env.events.ofType(models.EventBidAccepted))
	require.Len(t, env.events.ofType(models.EventFraudAlertRaised), 1)
	require.Zero(t, env.review.count())
	_, err = env.store.Get(ctx, "account/bidder-1")
	require.NoError(t, err)
	_, _, available, err := env.ledger.Account(ctx, "bidder-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), available)
}

func TestProcessorFlagsSuspiciousBidForReview(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 100, ascendingAuction(now))
	env.credit(t, "bidder-1", 5000)

	// Shared device (40) plus a day-old account (20) lands in the flag
	// band: allowed through, queued for review.
	require.NoError(t, env.store.Put(ctx, &models.BidderProfile{
		BidderID:      "seller-1",
		KnownDevices:  []string{"dev-7"},
		AccountAge:    365 * 24 * time.Hour,
		ActivityScore: 0.9,
		CreatedAt:     now.Add(-365 * 24 * time.Hour),
	}))
	require.NoError(t, env.store.Put(ctx, &models.BidderProfile{
		BidderID:      "bidder-1",
		AccountAge:    24 * time.Hour,
		ActivityScore: 0.9,
		CreatedAt:     now.Add(-24 * time.Hour),
	}))

	bid, err := env.proc.Submit(ctx, &BidSubmission{
		AuctionID: "a-asc",
		BidderID:  "bidder-1",
		Amount:    1000,
		Timestamp: now,
		DeviceID:  "dev-7",
	})
	require.NoError(t, err)
	require.NotEmpty(t, bid.ID)
	require.Equal(t, 1, env.review.count())
	require.Len(t, env.events.ofType(models.EventFraudAlertRaised), 1)
}

func TestProcessorVelocityLimitBlocks(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 2, ascendingAuction(now))
	env.credit(t, "bidder-1", 50000)

	for i, amount := range []int64{1000, 1100} {
		_, err := env.proc.Submit(ctx, &BidSubmission{
			AuctionID: "a-asc",
			BidderID:  "bidder-1",
			Amount:    amount,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	// Third bid inside the window trips the velocity limit; the cooldown
	// then pre-rejects the fourth without re-evaluation.
	for _, amount := range []int64{1200, 1300} {
		_, err := env.proc.Submit(ctx, &BidSubmission{
			AuctionID: "a-asc",
			BidderID:  "bidder-1",
			Amount:    amount,
			Timestamp: now.Add(3 * time.Second),
		})
		require.ErrorIs(t, err, auctionerrors.ErrVelocityExceeded)
	}
}

func TestProcessorThrottlesSourceIP(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	env := newProcessorEnv(t, 1000, ascendingAuction(now))

	// The per-IP bucket holds 40 tokens; burn through it against a
	// nonexistent auction so nothing else interferes.
	var throttled bool
	for i := 0; i < 45; i++ {
		_, err := env.proc.Submit(ctx, &BidSubmission{
			AuctionID: "ghost",
			BidderID:  fmt.Sprintf("bidder-%d", i),
			Amount:    1000,
			Timestamp: now,
			SourceIP:  "6.6.6.6",
		})
		if errors.Is(err, auctionerrors.ErrVelocityExceeded) {
			throttled = true
			break
		}
		require.ErrorIs(t, err, auctionerrors.ErrNotFound)
	}
	require.True(t, throttled)
}

func TestProcessorAcceptCurrentPrice(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	a := descendingAuction(now.Add(-time.Minute))
	env := newProcessorEnv(t, 100, a)
	env.credit(t, "buyer-1", 2000)

	bid, err := env.proc.AcceptCurrentPrice(ctx, a.ID, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, "buyer-1", bid.BidderID)

	ent, err := env.store.Get(ctx, "auction/"+a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSold, ent.(*models.Auction).Status)
}
