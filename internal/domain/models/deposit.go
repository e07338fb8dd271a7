package models

import "time"

// HoldReason explains why funds are reserved.
type HoldReason string

const (
	HoldReasonBid     HoldReason = "bid"
	HoldReasonBuyNow  HoldReason = "buy_now"
	HoldReasonPenalty HoldReason = "penalty"
)

// DepositHold reserves part of an account balance without debiting it.
// Created on bid acceptance, superseded when outbid, converted to a payment
// on win, released on loss or cancellation.
type DepositHold struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	AuctionID string     `json:"auction_id"`
	Amount    int64      `json:"amount"`
	Reason    HoldReason `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *DepositHold) EntityID() string { return "hold/" + h.ID }

// Expired reports whether the hold has passed its expiry.
func (h *DepositHold) Expired(now time.Time) bool {
	return h.ExpiresAt != nil && now.After(*h.ExpiresAt)
}

// DepositAccount tracks a user's balance and active holds.
// Invariant: Available() is never negative.
type DepositAccount struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	HoldIDs   []string  `json:"hold_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *DepositAccount) EntityID() string { return "account/" + a.UserID }

// Payment is the debit produced when a winning hold is converted.
type Payment struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Payment) EntityID() string { return "payment/" + p.ID }
