package fraud

import (
	"time"

	"Gavel/internal/domain/models"
	"Gavel/pkg/util"
)

// ShillWeights are the tunable per-signal score contributions.
type ShillWeights struct {
	SameIP      int
	SameDevice  int
	PingPong    int
	NewAccount  int
	LastMinute  int
	LowActivity int
}

// DefaultShillWeights match the standard scoring table.
func DefaultShillWeights() ShillWeights {
	return ShillWeights{
		SameIP:      50,
		SameDevice:  40,
		PingPong:    30,
		NewAccount:  20,
		LastMinute:  20,
		LowActivity: 15,
	}
}

// ShillDetector scores one bid for seller-collusion signals. Each of the
// six signals is evaluated independently and the fixed weights are summed.
type ShillDetector struct {
	weights          ShillWeights
	blockThreshold   int
	flagThreshold    int
	newAccountAge    time.Duration
	lastMinuteWindow time.Duration
	lowActivityScore float64
}

// NewShillDetector creates a detector with the given thresholds.
func NewShillDetector(weights ShillWeights, blockThreshold, flagThreshold int, newAccountAge, lastMinuteWindow time.Duration, lowActivityScore float64) *ShillDetector {
	return &ShillDetector{
		weights:          weights,
		blockThreshold:   blockThreshold,
		flagThreshold:    flagThreshold,
		newAccountAge:    newAccountAge,
		lastMinuteWindow: lastMinuteWindow,
		lowActivityScore: lowActivityScore,
	}
}

// Evaluate scores the bid. It returns nil when no signal fired.
func (d *ShillDetector) Evaluate(bctx *models.BidContext) *models.FraudAlert {
	factors := make(map[string]int)

	if contains(bctx.SellerIPs, bctx.Bid.SourceIP) {
		factors["same_ip"] = d.weights.SameIP
	}
	if contains(bctx.SellerDevices, bctx.Bid.DeviceID) || contains(bctx.AuctionDevices, bctx.Bid.DeviceID) {
		factors["same_device"] = d.weights.SameDevice
	}
	if pingPong(bctx.RecentBidders, bctx.Bid.BidderID) {
		factors["ping_pong"] = d.weights.PingPong
	}
	if bctx.Bidder != nil && bctx.Bidder.AccountAge < d.newAccountAge {
		factors["new_account"] = d.weights.NewAccount
	}
	if bctx.Auction != nil && bctx.Auction.ScheduledEnd.Sub(bctx.Now) < d.lastMinuteWindow {
		factors["last_minute"] = d.weights.LastMinute
	}
	if bctx.Bidder != nil && bctx.Bidder.ActivityScore < d.lowActivityScore {
		factors["low_activity"] = d.weights.LowActivity
	}

	if len(factors) == 0 {
		return nil
	}

	score := 0
	for _, w := range factors {
		score += w
	}

	alert := &models.FraudAlert{
		ID:          util.NewID(),
		SubjectType: models.SubjectBid,
		SubjectID:   bctx.Bid.ID,
		Score:       score,
		Factors:     factors,
		Detector:    "shill_bidding",
		CreatedAt:   bctx.Now,
	}
	switch {
	case score >= d.blockThreshold:
		alert.Severity = models.SeverityHigh
		alert.Action = models.ActionBlockAndReview
	case score >= d.flagThreshold:
		alert.Severity = models.SeverityMedium
		alert.Action = models.ActionFlagForReview
	default:
		alert.Severity = models.SeverityLow
		alert.Action = models.ActionAllow
	}
	return alert
}

func contains(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// pingPong detects two accounts alternating bids. The incoming bidder plus
// the last three accepted bidders must form an A-B-A-B pattern.
func pingPong(recent []string, bidder string) bool {
	if len(recent) < 3 {
		return false
	}
	tail := recent[len(recent)-3:]
	other := tail[2]
	if other == bidder {
		return false
	}
	return tail[1] == bidder && tail[0] == other
}
