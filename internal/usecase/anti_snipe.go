package usecase

import "time"

// ShouldExtend decides whether a bid arriving at bidAt extends an auction
// closing at scheduledEnd. Pure and deterministic: extends iff the bid
// lands inside the extension window and extensions remain.
func ShouldExtend(bidAt, scheduledEnd time.Time, window time.Duration, used, max int) bool {
	if window <= 0 || used >= max {
		return false
	}
	return scheduledEnd.Sub(bidAt) < window
}
