package models

import "time"

// EventType names an outbound lifecycle event.
type EventType string

const (
	EventBidAccepted        EventType = "bid_accepted"
	EventOutbid             EventType = "outbid"
	EventAuctionEnded       EventType = "auction_ended"
	EventAuctionCancelled   EventType = "auction_cancelled"
	EventPriceTick          EventType = "price_tick"
	EventLotCalled          EventType = "lot_called"
	EventFraudAlertRaised   EventType = "fraud_alert_raised"
	EventEscrowStateChanged EventType = "escrow_state_changed"
)

// Event is the envelope published to the notification collaborator. The
// engine only produces events; delivery is external.
type Event struct {
	Type       EventType   `json:"type"`
	AuctionID  string      `json:"auction_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// BidAcceptedPayload carries the accepted amount for the notification
// collaborator. Sealed marks amounts that must stay hidden from the public
// spectator feed until reveal.
type BidAcceptedPayload struct {
	AuctionID    string `json:"auction_id"`
	BidID        string `json:"bid_id"`
	BidderID     string `json:"bidder_id"`
	Amount       int64  `json:"amount,omitempty"`
	CurrentPrice int64  `json:"current_price"`
	Sealed       bool   `json:"sealed,omitempty"`
}

type OutbidPayload struct {
	AuctionID        string `json:"auction_id"`
	PreviousBidderID string `json:"previous_bidder_id"`
	CurrentPrice     int64  `json:"current_price"`
}

type AuctionEndedPayload struct {
	AuctionID  string `json:"auction_id"`
	Status     Status `json:"status"`
	WinnerID   string `json:"winner_id,omitempty"`
	FinalPrice int64  `json:"final_price,omitempty"`
}

type PriceTickPayload struct {
	AuctionID string `json:"auction_id"`
	Price     int64  `json:"price"`
}

type LotCalledPayload struct {
	AuctionID string   `json:"auction_id"`
	LotNumber int      `json:"lot_number"`
	State     LotState `json:"state"`
	Calls     int      `json:"calls"`
	HighBid   int64    `json:"high_bid"`
}

type FraudAlertPayload struct {
	Alert *FraudAlert `json:"alert"`
}

type EscrowStateChangedPayload struct {
	EscrowID  string      `json:"escrow_id"`
	OrderID   string      `json:"order_id"`
	FromState EscrowState `json:"from_state"`
	ToState   EscrowState `json:"to_state"`
}
