package models

import "time"

// Severity grades a fraud alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RecommendedAction is what the scorer wants done with the subject.
type RecommendedAction string

const (
	ActionAllow            RecommendedAction = "allow"
	ActionFlagForReview    RecommendedAction = "flag_for_review"
	ActionBlockAndReview   RecommendedAction = "block_and_review"
	ActionBlockTransaction RecommendedAction = "block_transaction"
	ActionCreateDispute    RecommendedAction = "create_dispute"
	ActionNotifyBuyer      RecommendedAction = "notify_buyer"
)

// Blocking reports whether the action vetoes the subject.
func (a RecommendedAction) Blocking() bool {
	return a == ActionBlockAndReview || a == ActionBlockTransaction
}

// SubjectType identifies what a fraud alert is about.
type SubjectType string

const (
	SubjectBid     SubjectType = "bid"
	SubjectOrder   SubjectType = "order"
	SubjectAccount SubjectType = "account"
)

// FraudAlert is the outcome of a fraud evaluation. Factors maps signal
// names to their score contribution.
type FraudAlert struct {
	ID          string            `json:"id"`
	SubjectType SubjectType       `json:"subject_type"`
	SubjectID   string            `json:"subject_id"`
	Score       int               `json:"score"`
	Factors     map[string]int    `json:"factors"`
	Severity    Severity          `json:"severity"`
	Action      RecommendedAction `json:"recommended_action"`
	Detector    string            `json:"detector"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (f *FraudAlert) EntityID() string { return "alert/" + f.ID }

// BidContext bundles what the shill detector needs to evaluate one bid
// beyond the bid itself.
type BidContext struct {
	Bid           *Bid
	Auction       *Auction
	Bidder        *BidderProfile
	SellerIPs     []string
	SellerDevices []string
	// AuctionDevices are device fingerprints already seen on this
	// auction's other bidders.
	AuctionDevices []string
	// RecentBidders lists bidder IDs of this auction's accepted bids,
	// most recent last, for ping-pong pattern detection.
	RecentBidders []string
	Now           time.Time
}
