package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gavel/internal/auctionerrors"
	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/util"
)

// Machine serializes every mutation for a single auction through one actor
// goroutine. Operations on different auctions run fully in parallel;
// operations on the same auction are strictly ordered. Bid submission,
// Dutch decay ticks, sealed reveal and live-call ops all go through the
// same command queue.
type Machine struct {
	auctionID string
	store     domrepo.Store
	ledger    *DepositLedger
	events    domrepo.EventPublisher
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	escrow    *EscrowCoordinator

	cmds chan command
	quit chan struct{}
	done chan struct{}
}

type command struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// NewMachine creates the actor for one auction and starts its run loop.
func NewMachine(
	auctionID string,
	store domrepo.Store,
	ledger *DepositLedger,
	escrow *EscrowCoordinator,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *Machine {
	m := &Machine{
		auctionID: auctionID,
		store:     store,
		ledger:    ledger,
		escrow:    escrow,
		events:    events,
		metrics:   metrics,
		logger:    lgr,
		cmds:      make(chan command, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Machine) run() {
	defer close(m.done)
	for {
		select {
		case c := <-m.cmds:
			c.fn(context.Background())
			close(c.done)
		case <-m.quit:
			return
		}
	}
}

// Stop terminates the actor. Queued commands that have not started are
// abandoned; callers waiting on them unblock via the quit channel.
func (m *Machine) Stop() {
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
	<-m.done
}

// do enqueues fn and waits for it to run. The wait for the serialization
// slot is bounded by ctx; once enqueued the operation always completes, so
// an accepted bid is never silently dropped after a caller timeout.
func (m *Machine) do(ctx context.Context, fn func(ctx context.Context)) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case m.cmds <- c:
	case <-ctx.Done():
		return fmt.Errorf("auction %s: %w", m.auctionID, auctionerrors.ErrTimeout)
	case <-m.quit:
		return fmt.Errorf("auction %s: %w", m.auctionID, auctionerrors.ErrAuctionNotActive)
	}
	select {
	case <-c.done:
		return nil
	case <-m.quit:
		return fmt.Errorf("auction %s: %w", m.auctionID, auctionerrors.ErrAuctionNotActive)
	}
}

// BidRequest is one validated submission reaching the machine.
type BidRequest struct {
	BidderID string
	Amount   int64
	Now      time.Time
	SourceIP string
	DeviceID string
}

// SubmitBid applies one ascending/sealed/live-call bid. On success it holds
// the bidder's deposit, releases the superseded leader's hold, updates the
// price, may extend the close (anti-snipe) and may complete a buy-now sale.
func (m *Machine) SubmitBid(ctx context.Context, req *BidRequest) (*models.Bid, error) {
	var (
		bid *models.Bid
		err error
	)
	doErr := m.do(ctx, func(opCtx context.Context) {
		bid, err = m.submitBid(opCtx, req)
	})
	if doErr != nil {
		return nil, doErr
	}
	return bid, err
}

func (m *Machine) submitBid(ctx context.Context, req *BidRequest) (*models.Bid, error) {
	a, err := m.auction(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.checkActive(a, req.Now); err != nil {
		return nil, err
	}
	if a.Format == models.FormatDescending {
		// Dutch auctions take no counter-bids; buyers accept the
		// standing price instead.
		return nil, fmt.Errorf("descending auction %s takes no bids: %w", a.ID, auctionerrors.ErrInvalidBid)
	}

	minBid := a.MinimumBid()
	if a.Format == models.FormatSealed {
		minBid = a.StartingPrice
	}
	if req.Amount < minBid {
		return nil, fmt.Errorf("bid %d below minimum %d: %w", req.Amount, minBid, auctionerrors.ErrBidTooLow)
	}

	prevBidder := a.WinnerID
	prevHold := a.WinningHoldID
	sameLeader := prevBidder == req.BidderID

	// The reservation and the acceptance commit in one transaction. A
	// leader raising their own bid replaces their hold in the same commit
	// that records the raise, so a failed accept rolls both back.
	var (
		bid  *models.Bid
		next models.Auction
	)
	txErr := withRetry(ctx, m.store, func(tx domrepo.Tx) error {
		hold, err := m.ledger.holdInTx(tx, req.BidderID, a.ID, req.Amount, models.HoldReasonBid)
		if err != nil {
			return err
		}

		bid = &models.Bid{
			ID:          util.NewID(),
			AuctionID:   a.ID,
			BidderID:    req.BidderID,
			Amount:      req.Amount,
			SubmittedAt: req.Now,
			SourceIP:    req.SourceIP,
			DeviceID:    req.DeviceID,
			Sealed:      a.Format == models.FormatSealed,
		}

		next = *a
		next.UpdatedAt = req.Now
		if a.Format != models.FormatSealed {
			next.CurrentPrice = req.Amount
			next.WinningBidID = bid.ID
			next.WinnerID = req.BidderID
			next.WinningHoldID = hold.ID

			if ShouldExtend(req.Now, next.ScheduledEnd, next.ExtensionWindow, next.ExtensionsUsed, next.MaxExtensions) {
				next.ScheduledEnd = next.ScheduledEnd.Add(next.ExtensionWindow)
				next.ExtensionsUsed++
			}

			if next.BuyNowPrice > 0 && req.Amount >= next.BuyNowPrice {
				next.Status = models.StatusSold
				end := req.Now
				next.ActualEnd = &end
			}
		}
		if a.Status != next.Status && !models.CanTransition(a.Status, next.Status) {
			return fmt.Errorf("auction %s status %s -> %s: %w", a.ID, a.Status, next.Status, auctionerrors.ErrInvalidTransition)
		}

		if err := tx.Put(bid); err != nil {
			return err
		}
		log, err := getBidLog(tx, a.ID)
		if err != nil {
			return err
		}
		nl := *log
		nl.BidIDs = append(append([]string(nil), log.BidIDs...), bid.ID)
		if err := tx.Put(&nl); err != nil {
			return err
		}
		return tx.Put(&next)
	})
	if txErr != nil {
		return nil, fmt.Errorf("accept bid on auction %s: %w", a.ID, txErr)
	}

	// Supersession is synchronous: the outbid leader's funds free up
	// before the accept call returns. Sealed bids keep every hold.
	if a.Format != models.FormatSealed && prevHold != "" && !sameLeader {
		if err := m.ledger.Release(ctx, prevHold); err != nil {
			m.logger.Error("superseded hold release failed",
				applogger.String("auction_id", a.ID),
				applogger.String("hold_id", prevHold),
				applogger.Error(err))
		}
	}
	if a.Format == models.FormatLiveCall {
		m.resetLotCalls(ctx, a.ID, a.CurrentLot)
	}
	m.metrics.RecordBidAccepted(string(a.Format))
	m.metrics.RecordCurrentPrice(string(a.Format), next.CurrentPrice)

	m.publish(ctx, models.EventBidAccepted, &models.BidAcceptedPayload{
		AuctionID:    a.ID,
		BidID:        bid.ID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		CurrentPrice: next.CurrentPrice,
		Sealed:       bid.Sealed,
	})
	if a.Format != models.FormatSealed && prevBidder != "" && !sameLeader {
		m.publish(ctx, models.EventOutbid, &models.OutbidPayload{
			AuctionID:        a.ID,
			PreviousBidderID: prevBidder,
			CurrentPrice:     next.CurrentPrice,
		})
	}
	if next.Status == models.StatusSold {
		m.settle(ctx, &next)
	}
	return bid, nil
}

// CloseAuction ends an auction whose scheduled end has passed, settling the
// winner if the reserve was met.
func (m *Machine) CloseAuction(ctx context.Context, now time.Time) error {
	var err error
	doErr := m.do(ctx, func(opCtx context.Context) {
		err = m.closeAuction(opCtx, now)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (m *Machine) closeAuction(ctx context.Context, now time.Time) error {
	a, err := m.auction(ctx)
	if err != nil {
		return err
	}
	if a.Status != models.StatusActive {
		return fmt.Errorf("auction %s status %s: %w", a.ID, a.Status, auctionerrors.ErrAuctionNotActive)
	}

	next := *a
	end := now
	next.ActualEnd = &end
	next.UpdatedAt = now

	won := a.WinningBidID != "" && a.ReserveMet(a.CurrentPrice)
	if won {
		next.Status = models.StatusSold
	} else {
		next.Status = models.StatusEnded
		next.WinnerID = ""
		next.WinningBidID = ""
	}

	if err := m.transition(ctx, a.Status, &next); err != nil {
		return err
	}

	if won {
		m.settle(ctx, &next)
	} else if a.WinningHoldID != "" {
		// Reserve not met: the leader gets their deposit back.
		if err := m.ledger.Release(ctx, a.WinningHoldID); err != nil {
			m.logger.Error("close hold release failed",
				applogger.String("auction_id", a.ID), applogger.Error(err))
		}
	}

	m.publish(ctx, models.EventAuctionEnded, &models.AuctionEndedPayload{
		AuctionID:  a.ID,
		Status:     next.Status,
		WinnerID:   next.WinnerID,
		FinalPrice: next.CurrentPrice,
	})
	return nil
}

// Cancel administratively cancels an auction and releases every
// outstanding hold for it.
func (m *Machine) Cancel(ctx context.Context) error {
	var err error
	doErr := m.do(ctx, func(opCtx context.Context) {
		err = m.cancel(opCtx)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (m *Machine) cancel(ctx context.Context) error {
	a, err := m.auction(ctx)
	if err != nil {
		return err
	}
	if !models.CanTransition(a.Status, models.StatusCancelled) {
		return fmt.Errorf("auction %s status %s: %w", a.ID, a.Status, auctionerrors.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	next := *a
	next.Status = models.StatusCancelled
	next.ActualEnd = &now
	next.UpdatedAt = now
	next.WinnerID = ""
	next.WinningBidID = ""
	next.WinningHoldID = ""

	if err := m.transition(ctx, a.Status, &next); err != nil {
		return err
	}
	if err := m.ledger.ReleaseAuctionHolds(ctx, a.ID, ""); err != nil {
		return err
	}
	m.publish(ctx, models.EventAuctionCancelled, &models.AuctionEndedPayload{
		AuctionID: a.ID,
		Status:    models.StatusCancelled,
	})
	return nil
}

// Activate moves a scheduled auction to active under operator control.
func (m *Machine) Activate(ctx context.Context) error {
	var err error
	doErr := m.do(ctx, func(opCtx context.Context) {
		err = m.setStatus(opCtx, models.StatusScheduled, models.StatusActive)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Suspend moves an active auction back to scheduled under operator control.
func (m *Machine) Suspend(ctx context.Context) error {
	var err error
	doErr := m.do(ctx, func(opCtx context.Context) {
		err = m.setStatus(opCtx, models.StatusActive, models.StatusScheduled)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (m *Machine) setStatus(ctx context.Context, from, to models.Status) error {
	a, err := m.auction(ctx)
	if err != nil {
		return err
	}
	if a.Status != from || !models.CanTransition(from, to) {
		return fmt.Errorf("auction %s status %s -> %s: %w", a.ID, a.Status, to, auctionerrors.ErrInvalidTransition)
	}
	next := *a
	next.Status = to
	next.UpdatedAt = time.Now().UTC()
	return m.transition(ctx, from, &next)
}

// Snapshot returns the auction state as the actor sees it.
func (m *Machine) Snapshot(ctx context.Context) (*models.Auction, error) {
	var (
		a   *models.Auction
		err error
	)
	doErr := m.do(ctx, func(opCtx context.Context) {
		a, err = m.auction(opCtx)
	})
	if doErr != nil {
		return nil, doErr
	}
	return a, err
}

// --- internals ---

func (m *Machine) auction(ctx context.Context) (*models.Auction, error) {
	e, err := m.store.Get(ctx, "auction/"+m.auctionID)
	if err != nil {
		return nil, err
	}
	a, ok := e.(*models.Auction)
	if !ok {
		return nil, fmt.Errorf("entity auction/%s is not an auction", m.auctionID)
	}
	return a, nil
}

func (m *Machine) checkActive(a *models.Auction, now time.Time) error {
	if a.Status != models.StatusActive {
		return fmt.Errorf("auction %s status %s: %w", a.ID, a.Status, auctionerrors.ErrAuctionNotActive)
	}
	if now.Before(a.ScheduledStart) || now.After(a.ScheduledEnd) {
		return fmt.Errorf("auction %s outside bidding window: %w", a.ID, auctionerrors.ErrAuctionNotActive)
	}
	return nil
}

// transition persists a validated status change in one transaction.
func (m *Machine) transition(ctx context.Context, from models.Status, next *models.Auction) error {
	if from != next.Status && !models.CanTransition(from, next.Status) {
		return fmt.Errorf("auction %s status %s -> %s: %w", next.ID, from, next.Status, auctionerrors.ErrInvalidTransition)
	}
	err := withRetry(ctx, m.store, func(tx domrepo.Tx) error {
		return tx.Put(next)
	})
	if err != nil {
		return fmt.Errorf("transition auction %s: %w", next.ID, err)
	}
	return nil
}

// settle opens escrow for a won auction. Called after the sold transition
// is durable.
func (m *Machine) settle(ctx context.Context, a *models.Auction) {
	m.settleOrder(ctx, a, "")
}

func (m *Machine) settleOrder(ctx context.Context, a *models.Auction, orderID string) {
	if m.escrow == nil || a.WinnerID == "" || a.WinningHoldID == "" {
		return
	}
	if _, err := m.escrow.Open(ctx, a, orderID); err != nil {
		m.logger.Error("escrow open failed",
			applogger.String("auction_id", a.ID),
			applogger.Error(err))
		m.metrics.RecordError("escrow_open")
	}
}

func (m *Machine) publish(ctx context.Context, typ models.EventType, payload interface{}) {
	if m.events == nil {
		return
	}
	ev := &models.Event{
		Type:       typ,
		AuctionID:  m.auctionID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	if err := m.events.PublishEvent(ctx, ev); err != nil {
		m.logger.Warn("event publish failed",
			applogger.String("type", string(typ)),
			applogger.String("auction_id", m.auctionID),
			applogger.Error(err))
		m.metrics.RecordError("event_publish")
	}
}

// persistAcceptance stores an accepted bid, appends it to the bid log and
// applies the auction update in one transaction.
func (m *Machine) persistAcceptance(ctx context.Context, bid *models.Bid, next *models.Auction, from models.Status) error {
	if from != next.Status && !models.CanTransition(from, next.Status) {
		return fmt.Errorf("auction %s status %s -> %s: %w", next.ID, from, next.Status, auctionerrors.ErrInvalidTransition)
	}
	err := withRetry(ctx, m.store, func(tx domrepo.Tx) error {
		if err := tx.Put(bid); err != nil {
			return err
		}
		log, err := getBidLog(tx, next.ID)
		if err != nil {
			return err
		}
		nl := *log
		nl.BidIDs = append(append([]string(nil), log.BidIDs...), bid.ID)
		if err := tx.Put(&nl); err != nil {
			return err
		}
		return tx.Put(next)
	})
	if err != nil {
		return fmt.Errorf("accept bid on auction %s: %w", next.ID, err)
	}
	return nil
}

func getBidLog(tx domrepo.Tx, auctionID string) (*models.BidLog, error) {
	e, err := tx.Get("bidlog/" + auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return &models.BidLog{AuctionID: auctionID}, nil
		}
		return nil, err
	}
	log, ok := e.(*models.BidLog)
	if !ok {
		return nil, fmt.Errorf("entity bidlog/%s is not a bid log", auctionID)
	}
	return log, nil
}
