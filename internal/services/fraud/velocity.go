package fraud

import (
	"fmt"
	"sync"
	"time"

	icache "Gavel/internal/service/cache"
)

// VelocityControl rate-limits bids per (auction, bidder) pair. A rejection
// puts the pair into a cooldown during which further bids are pre-rejected
// without re-evaluation. The check and the counter update happen under one
// lock so two near-simultaneous bids cannot both pass.
type VelocityControl struct {
	maxPerWindow int
	window       time.Duration
	minSpacing   time.Duration
	cooldown     time.Duration
	cooldowns    icache.BytesCache

	mu   sync.Mutex
	seen map[string][]time.Time
}

// NewVelocityControl creates the control. cooldowns may be memory or
// Redis backed.
func NewVelocityControl(maxPerMinute int, minSpacing, cooldown time.Duration, cooldowns icache.BytesCache) *VelocityControl {
	return &VelocityControl{
		maxPerWindow: maxPerMinute,
		window:       time.Minute,
		minSpacing:   minSpacing,
		cooldown:     cooldown,
		cooldowns:    cooldowns,
		seen:         make(map[string][]time.Time),
	}
}

// Allow records the bid attempt and reports whether it may proceed.
func (v *VelocityControl) Allow(auctionID, bidderID string, now time.Time) bool {
	key := fmt.Sprintf("%s:%s", auctionID, bidderID)

	if v.cooldowns != nil {
		if _, hit, _ := v.cooldowns.GetBytes("cooldown:" + key); hit {
			return false
		}
	}

	v.mu.Lock()
	times := v.seen[key]

	// drop entries outside the trailing window
	cutoff := now.Add(-v.window)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	reject := false
	if v.maxPerWindow > 0 && len(kept) >= v.maxPerWindow {
		reject = true
	}
	if !reject && v.minSpacing > 0 && len(kept) > 0 {
		if now.Sub(kept[len(kept)-1]) < v.minSpacing {
			reject = true
		}
	}
	if !reject {
		kept = append(kept, now)
	}
	v.seen[key] = kept
	v.mu.Unlock()

	if reject && v.cooldowns != nil && v.cooldown > 0 {
		_ = v.cooldowns.SetBytes("cooldown:"+key, []byte("1"), v.cooldown)
	}
	return !reject
}

// Reset clears tracked state for a pair, e.g. after auction close. Any
// active cooldown is lifted as well.
func (v *VelocityControl) Reset(auctionID, bidderID string) {
	key := fmt.Sprintf("%s:%s", auctionID, bidderID)
	v.mu.Lock()
	delete(v.seen, key)
	v.mu.Unlock()
	if v.cooldowns != nil {
		_ = v.cooldowns.DeleteBytes("cooldown:" + key)
	}
}
