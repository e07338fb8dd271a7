package models

import "time"

// EscrowState is the settlement state of an escrow transaction.
type EscrowState string

const (
	EscrowPendingDeposit EscrowState = "pending_deposit"
	EscrowDeposited      EscrowState = "deposited"
	EscrowInTransit      EscrowState = "in_transit"
	EscrowDelivered      EscrowState = "delivered"
	EscrowConfirmed      EscrowState = "confirmed"
	EscrowReleased       EscrowState = "released"
	EscrowDisputed       EscrowState = "disputed"
	EscrowRefunded       EscrowState = "refunded"
)

// escrowTransitions is the closed transition table. released and refunded
// are terminal.
var escrowTransitions = map[EscrowState][]EscrowState{
	EscrowPendingDeposit: {EscrowDeposited},
	EscrowDeposited:      {EscrowInTransit, EscrowDisputed},
	EscrowInTransit:      {EscrowDelivered, EscrowDisputed},
	EscrowDelivered:      {EscrowConfirmed, EscrowDisputed},
	EscrowConfirmed:      {EscrowReleased},
	EscrowDisputed:       {EscrowReleased, EscrowRefunded},
}

// EscrowCanTransition reports whether from -> to is a legal escrow change.
func EscrowCanTransition(from, to EscrowState) bool {
	for _, s := range escrowTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EscrowTerminal reports whether s admits no further transitions.
func EscrowTerminal(s EscrowState) bool {
	return len(escrowTransitions[s]) == 0
}

// EscrowTransaction drives post-auction settlement. It references the
// buyer's deposit hold by ID; the ledger owns the hold itself.
type EscrowTransaction struct {
	ID               string      `json:"id"`
	OrderID          string      `json:"order_id"`
	AuctionID        string      `json:"auction_id"`
	BuyerID          string      `json:"buyer_id"`
	SellerID         string      `json:"seller_id"`
	HoldID           string      `json:"hold_id"`
	Amount           int64       `json:"amount"`
	State            EscrowState `json:"state"`
	DisputeWindowEnd time.Time   `json:"dispute_window_end"`
	DisputeReason    string      `json:"dispute_reason,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (e *EscrowTransaction) EntityID() string { return "escrow/" + e.ID }
