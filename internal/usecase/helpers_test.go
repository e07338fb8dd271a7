package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	"Gavel/internal/repository"
	applogger "Gavel/pkg/logger"

	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return lgr
}

type nopMetrics struct{}

func (nopMetrics) RecordBidAccepted(string)         {}
func (nopMetrics) RecordBidRejected(string)         {}
func (nopMetrics) RecordFraudAlert(string)          {}
func (nopMetrics) RecordEscrowTransition(string)    {}
func (nopMetrics) RecordCurrentPrice(string, int64) {}
func (nopMetrics) RecordActiveAuctions(int)         {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

// captureEvents records published events for assertions.
type captureEvents struct {
	mu     sync.Mutex
	events []*models.Event
}

func (c *captureEvents) PublishEvent(_ context.Context, ev *models.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *captureEvents) Close() error { return nil }

func (c *captureEvents) ofType(typ models.EventType) []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// machineEnv bundles a machine with its store and collaborators.
type machineEnv struct {
	store  *repository.MemoryStore
	ledger *DepositLedger
	escrow *EscrowCoordinator
	events *captureEvents
	m      *Machine
}

func newMachineEnv(t *testing.T, a *models.Auction) *machineEnv {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	events := &captureEvents{}
	lgr := testLogger(t)
	ledger := NewDepositLedger(store, 0)
	escrow := NewEscrowCoordinator(store, ledger, events, nopMetrics{}, lgr, time.Hour)

	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, &models.BidLog{AuctionID: a.ID}))

	m := NewMachine(a.ID, store, ledger, escrow, events, nopMetrics{}, lgr)
	t.Cleanup(m.Stop)
	return &machineEnv{store: store, ledger: ledger, escrow: escrow, events: events, m: m}
}

func (e *machineEnv) credit(t *testing.T, accountID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), accountID, amount)
	require.NoError(t, err)
}

func (e *machineEnv) auction(t *testing.T, id string) *models.Auction {
	t.Helper()
	ent, err := e.store.Get(context.Background(), "auction/"+id)
	require.NoError(t, err)
	a, ok := ent.(*models.Auction)
	require.True(t, ok)
	return a
}

func (e *machineEnv) auctionHolds(t *testing.T, auctionID string) []*models.DepositHold {
	t.Helper()
	var holds []*models.DepositHold
	err := e.store.RunInTransaction(context.Background(), func(tx domrepo.Tx) error {
		all, err := tx.List("hold/")
		if err != nil {
			return err
		}
		for _, ent := range all {
			if h, ok := ent.(*models.DepositHold); ok && h.AuctionID == auctionID {
				holds = append(holds, h)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return holds
}

func (e *machineEnv) escrows(t *testing.T) []*models.EscrowTransaction {
	t.Helper()
	var out []*models.EscrowTransaction
	err := e.store.RunInTransaction(context.Background(), func(tx domrepo.Tx) error {
		all, err := tx.List("escrow/")
		if err != nil {
			return err
		}
		for _, ent := range all {
			if esc, ok := ent.(*models.EscrowTransaction); ok {
				out = append(out, esc)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func (e *machineEnv) available(t *testing.T, accountID string) int64 {
	t.Helper()
	_, _, avail, err := e.ledger.Account(context.Background(), accountID)
	require.NoError(t, err)
	return avail
}

func ascendingAuction(now time.Time) *models.Auction {
	return &models.Auction{
		ID:              "a-asc",
		Title:           "estate silver",
		SellerID:        "seller-1",
		Format:          models.FormatAscending,
		Status:          models.StatusActive,
		StartingPrice:   1000,
		CurrentPrice:    1000,
		BidIncrement:    100,
		ScheduledStart:  now.Add(-time.Hour),
		ScheduledEnd:    now.Add(time.Hour),
		ExtensionWindow: 2 * time.Minute,
		MaxExtensions:   3,
		CreatedAt:       now.Add(-time.Hour),
		UpdatedAt:       now.Add(-time.Hour),
	}
}

func descendingAuction(now time.Time) *models.Auction {
	return &models.Auction{
		ID:             "a-dutch",
		Title:          "tulip crate",
		SellerID:       "seller-1",
		Format:         models.FormatDescending,
		Status:         models.StatusActive,
		StartingPrice:  1000,
		CurrentPrice:   1000,
		FloorPrice:     400,
		DecayStep:      100,
		DecayInterval:  time.Minute,
		ScheduledStart: now,
		ScheduledEnd:   now.Add(time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func sealedAuction(now time.Time) *models.Auction {
	return &models.Auction{
		ID:             "a-sealed",
		Title:          "mineral rights",
		SellerID:       "seller-1",
		Format:         models.FormatSealed,
		Status:         models.StatusActive,
		StartingPrice:  1000,
		CurrentPrice:   1000,
		ScheduledStart: now.Add(-time.Hour),
		ScheduledEnd:   now.Add(time.Hour),
		RevealTime:     now.Add(time.Hour),
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now.Add(-time.Hour),
	}
}

func liveCallAuction(now time.Time) *models.Auction {
	return &models.Auction{
		ID:             "a-live",
		Title:          "cattle drive",
		SellerID:       "seller-1",
		Format:         models.FormatLiveCall,
		Status:         models.StatusActive,
		StartingPrice:  500,
		CurrentPrice:   500,
		BidIncrement:   50,
		LotCount:       2,
		ScheduledStart: now.Add(-time.Hour),
		ScheduledEnd:   now.Add(time.Hour),
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now.Add(-time.Hour),
	}
}
