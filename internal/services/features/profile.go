package features

import (
	"math"
	"time"

	"Gavel/internal/domain/models"
)

const (
	// activityHalfLife controls how fast the activity score decays without
	// new bids.
	activityHalfLife = 7 * 24 * time.Hour
	// activityPerBid is how much one accepted bid raises the score before
	// saturation.
	activityPerBid  = 0.05
	maxKnownIPs     = 20
	maxKnownDevices = 20
)

// UpdateOnBid folds one accepted bid into the bidder's profile signals:
// the exponentially decayed activity score and the known IP/device sets
// the shill detector matches against. Returns the same profile for
// chaining into a store put.
func UpdateOnBid(p *models.BidderProfile, bid *models.Bid, now time.Time) *models.BidderProfile {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.AccountAge = now.Sub(p.CreatedAt)

	var idle time.Duration
	if !p.LastBidAt.IsZero() && now.After(p.LastBidAt) {
		idle = now.Sub(p.LastBidAt)
	}
	p.ActivityScore = decayScore(p.ActivityScore, idle) + activityPerBid
	if p.ActivityScore > 1 {
		p.ActivityScore = 1
	}
	p.LastBidAt = now

	if bid.SourceIP != "" {
		p.KnownIPs = appendBounded(p.KnownIPs, bid.SourceIP, maxKnownIPs)
	}
	if bid.DeviceID != "" {
		p.KnownDevices = appendBounded(p.KnownDevices, bid.DeviceID, maxKnownDevices)
	}
	return p
}

// decayScore halves the score for every activityHalfLife of idle time
// since the bidder's previous bid.
func decayScore(score float64, idle time.Duration) float64 {
	if score <= 0 {
		return 0
	}
	halfLives := float64(idle) / float64(activityHalfLife)
	if halfLives <= 0 {
		return score
	}
	return score * math.Pow(0.5, math.Min(halfLives, 32))
}

// appendBounded adds v if absent, evicting the oldest entry at capacity.
func appendBounded(values []string, v string, max int) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	values = append(values, v)
	if len(values) > max {
		values = values[len(values)-max:]
	}
	return values
}
