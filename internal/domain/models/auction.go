package models

import (
	"fmt"
	"time"
)

// Format is the auction format.
type Format string

const (
	FormatAscending  Format = "ascending"
	FormatDescending Format = "descending"
	FormatSealed     Format = "sealed"
	FormatLiveCall   Format = "live_call"
)

// Status is the auction lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
	StatusSold      Status = "sold"
	StatusExpired   Status = "expired"
)

// statusTransitions is the closed transition table. Transitions are
// one-directional except scheduled<->active under operator control.
var statusTransitions = map[Status][]Status{
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusScheduled, StatusEnded, StatusCancelled, StatusSold, StatusExpired},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func Terminal(s Status) bool {
	return len(statusTransitions[s]) == 0
}

// Auction holds one auction's price and lifecycle state. All amounts are in
// minor currency units. Mutated only through its state machine actor.
type Auction struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SellerID      string `json:"seller_id"`
	Format        Format `json:"format"`
	Status        Status `json:"status"`
	StartingPrice int64  `json:"starting_price"`
	CurrentPrice  int64  `json:"current_price"`
	// ReservePrice is hidden from bidders; zero means no reserve.
	ReservePrice int64 `json:"-"`
	BuyNowPrice  int64 `json:"buy_now_price,omitempty"`
	BidIncrement int64 `json:"bid_increment"`

	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`

	ExtensionWindow time.Duration `json:"extension_window"`
	MaxExtensions   int           `json:"max_extensions"`
	ExtensionsUsed  int           `json:"extensions_used"`

	WinningBidID  string `json:"winning_bid_id,omitempty"`
	WinnerID      string `json:"winner_id,omitempty"`
	WinningHoldID string `json:"-"`

	// Descending (Dutch) format fields.
	FloorPrice    int64         `json:"floor_price,omitempty"`
	DecayStep     int64         `json:"decay_step,omitempty"`
	DecayInterval time.Duration `json:"decay_interval,omitempty"`

	// Sealed format fields.
	RevealTime time.Time `json:"reveal_time,omitempty"`
	Revealed   bool      `json:"revealed,omitempty"`

	// Live-call format fields.
	CurrentLot int `json:"current_lot,omitempty"`
	LotCount   int `json:"lot_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Auction) EntityID() string { return "auction/" + a.ID }

// MinimumBid is the lowest acceptable ascending bid right now.
func (a *Auction) MinimumBid() int64 {
	if a.WinningBidID == "" {
		return a.StartingPrice
	}
	return a.CurrentPrice + a.BidIncrement
}

// ReserveMet reports whether price satisfies the seller's reserve.
func (a *Auction) ReserveMet(price int64) bool {
	return a.ReservePrice == 0 || price >= a.ReservePrice
}

// LotState is the live-call lot progression.
type LotState string

const (
	LotPending    LotState = "pending"
	LotOpen       LotState = "open"
	LotGoingOnce  LotState = "going_once"
	LotGoingTwice LotState = "going_twice"
	LotSold       LotState = "sold"
	LotPassed     LotState = "passed"
)

// Lot is a single live-call lot. Calls escalate 1 ("going once"),
// 2 ("going twice"), 3 ("sold").
type Lot struct {
	Number     int      `json:"number"`
	AuctionID  string   `json:"auction_id"`
	State      LotState `json:"state"`
	Calls      int      `json:"calls"`
	HighBid    int64    `json:"high_bid"`
	HighBidder string   `json:"high_bidder,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	Reserve    int64    `json:"-"`
}

func (l *Lot) EntityID() string {
	return fmt.Sprintf("lot/%s/%d", l.AuctionID, l.Number)
}
