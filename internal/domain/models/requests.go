package models

import "time"

// CreateAuctionRequest is the listing creation payload.
type CreateAuctionRequest struct {
	Title         string `json:"title" validate:"required,min=1,max=200"`
	SellerID      string `json:"seller_id" validate:"required"`
	Format        string `json:"format" validate:"required,oneof=ascending descending sealed live_call"`
	StartingPrice int64  `json:"starting_price" validate:"required,gt=0"`
	ReservePrice  int64  `json:"reserve_price" validate:"gte=0"`
	BuyNowPrice   int64  `json:"buy_now_price" validate:"gte=0"`
	BidIncrement  int64  `json:"bid_increment" validate:"gte=0"`

	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`

	ExtensionWindowSec int `json:"extension_window_sec" default:"120" validate:"gte=0"`
	MaxExtensions      int `json:"max_extensions" default:"3" validate:"gte=0"`

	// Descending format only.
	FloorPrice       int64 `json:"floor_price" validate:"gte=0"`
	DecayStep        int64 `json:"decay_step" validate:"gte=0"`
	DecayIntervalSec int   `json:"decay_interval_sec" validate:"gte=0"`

	// Sealed format only.
	RevealTime time.Time `json:"reveal_time"`

	// Live-call format only.
	LotCount int `json:"lot_count" validate:"gte=0"`
}

// SubmitBidRequest is the bid intake payload.
type SubmitBidRequest struct {
	BidderID string `json:"bidder_id" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	DeviceID string `json:"device_id"`
}

// AcceptPriceRequest accepts the current descending price.
type AcceptPriceRequest struct {
	BuyerID string `json:"buyer_id" validate:"required"`
}

// LiveOpRequest is one operator command on a live-call auction.
type LiveOpRequest struct {
	Op string `json:"op" validate:"required,oneof=start_lot call sold pass next_lot"`
}

// CreditRequest funds a deposit account.
type CreditRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// WithdrawRequest takes funds back out of a deposit account.
type WithdrawRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// DisputeRequest opens an escrow dispute.
type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// ResolveRequest settles an open dispute.
type ResolveRequest struct {
	Upheld bool `json:"upheld"`
}

// WeightCheckRequest reports a measured shipment weight for variance
// screening against the declared weight.
type WeightCheckRequest struct {
	OrderID        string  `json:"order_id" validate:"required"`
	DeclaredWeight float64 `json:"declared_weight" validate:"required,gt=0"`
	ActualWeight   float64 `json:"actual_weight" validate:"required,gt=0"`
}
