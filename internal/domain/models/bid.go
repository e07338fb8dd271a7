package models

import "time"

// Bid is a buyer's bid on an auction. Immutable once accepted.
type Bid struct {
	ID          string    `json:"id"`
	AuctionID   string    `json:"auction_id"`
	BidderID    string    `json:"bidder_id"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
	SourceIP    string    `json:"source_ip,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	// Sealed indicates the amount is withheld from competitors until reveal.
	Sealed bool `json:"sealed,omitempty"`
}

func (b *Bid) EntityID() string { return "bid/" + b.ID }

// BidLog indexes an auction's accepted bids in acceptance order.
type BidLog struct {
	AuctionID string   `json:"auction_id"`
	BidIDs    []string `json:"bid_ids"`
}

func (l *BidLog) EntityID() string { return "bidlog/" + l.AuctionID }

// BidderProfile carries the account signals the shill detector evaluates.
type BidderProfile struct {
	BidderID      string        `json:"bidder_id"`
	AccountAge    time.Duration `json:"account_age"`
	ActivityScore float64       `json:"activity_score"`
	KnownIPs      []string      `json:"known_ips,omitempty"`
	KnownDevices  []string      `json:"known_devices,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	LastBidAt     time.Time     `json:"last_bid_at,omitempty"`
}

func (p *BidderProfile) EntityID() string { return "profile/" + p.BidderID }
