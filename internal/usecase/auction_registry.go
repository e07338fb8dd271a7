package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/util"
)

// Registry owns one Machine per known auction, created lazily. Machines
// for different auctions run in parallel; the registry only guards the
// lookup map.
type Registry struct {
	store   domrepo.Store
	ledger  *DepositLedger
	escrow  *EscrowCoordinator
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	logger  *applogger.Logger

	mu       sync.RWMutex
	machines map[string]*Machine
	decay    map[string]*DecayRunner
}

// NewRegistry creates the machine registry.
func NewRegistry(
	store domrepo.Store,
	ledger *DepositLedger,
	escrow *EscrowCoordinator,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *Registry {
	return &Registry{
		store:    store,
		ledger:   ledger,
		escrow:   escrow,
		events:   events,
		metrics:  metrics,
		logger:   lgr,
		machines: make(map[string]*Machine),
		decay:    make(map[string]*DecayRunner),
	}
}

// CreateAuction persists a new auction and spins up its machine.
func (r *Registry) CreateAuction(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	if a.ID == "" {
		a.ID = util.NewID()
	}
	if a.Status == "" {
		a.Status = models.StatusScheduled
	}
	a.CurrentPrice = a.StartingPrice
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	err := r.store.RunInTransaction(ctx, func(tx domrepo.Tx) error {
		if _, err := tx.Get(a.EntityID()); err == nil {
			return fmt.Errorf("auction %s exists: %w", a.ID, auctionerrors.ErrConcurrentModification)
		} else if !errors.Is(err, auctionerrors.ErrNotFound) {
			return err
		}
		if err := tx.Put(a); err != nil {
			return err
		}
		return tx.Put(&models.BidLog{AuctionID: a.ID})
	})
	if err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	r.logger.Info("auction created",
		applogger.String("auction_id", a.ID),
		applogger.String("format", string(a.Format)),
		applogger.Int64("starting_price", a.StartingPrice))

	m := r.Machine(a.ID)
	if a.Format == models.FormatDescending && a.DecayInterval > 0 {
		r.startDecay(a.ID, m, a.DecayInterval)
	}
	r.recordActive()
	return a, nil
}

// Machine returns the actor for an auction, creating it if needed. The
// auction itself may not exist yet in the store; operations will fail with
// ErrNotFound in that case.
func (r *Registry) Machine(auctionID string) *Machine {
	r.mu.RLock()
	m, ok := r.machines[auctionID]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok = r.machines[auctionID]; ok {
		return m
	}
	m = NewMachine(auctionID, r.store, r.ledger, r.escrow, r.events, r.metrics, r.logger)
	r.machines[auctionID] = m
	return m
}

func (r *Registry) startDecay(auctionID string, m *Machine, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.decay[auctionID]; ok {
		return
	}
	r.decay[auctionID] = NewDecayRunner(m, interval, r.logger)
}

func (r *Registry) recordActive() {
	r.mu.RLock()
	n := len(r.machines)
	r.mu.RUnlock()
	r.metrics.RecordActiveAuctions(n)
}

// Shutdown stops every decay runner and machine.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.decay {
		d.Stop()
		delete(r.decay, id)
	}
	for id, m := range r.machines {
		m.Stop()
		delete(r.machines, id)
	}
	return nil
}
