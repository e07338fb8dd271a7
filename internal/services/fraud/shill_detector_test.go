package fraud

import (
	"testing"
	"time"

	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func testShillDetector() *ShillDetector {
	return NewShillDetector(DefaultShillWeights(), 80, 60, 7*24*time.Hour, time.Minute, 0.3)
}

func baseBidContext(now time.Time) *models.BidContext {
	return &models.BidContext{
		Bid: &models.Bid{
			ID:       "bid-1",
			BidderID: "bidder-1",
			SourceIP: "10.0.0.1",
			DeviceID: "dev-1",
		},
		Auction: &models.Auction{
			ID:           "auc-1",
			SellerID:     "seller-1",
			ScheduledEnd: now.Add(time.Hour),
		},
		Bidder: &models.BidderProfile{
			BidderID:      "bidder-1",
			AccountAge:    90 * 24 * time.Hour,
			ActivityScore: 0.8,
		},
		Now: now,
	}
}

func TestShillDetectorCleanBid(t *testing.T) {
	now := time.Now().UTC()
	require.Nil(t, testShillDetector().Evaluate(baseBidContext(now)))
}

func TestShillDetectorScoring(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		mutate     func(b *models.BidContext)
		score      int
		severity   models.Severity
		action     models.RecommendedAction
		factorKeys []string
	}{
		{
			name: "seller ip match alone flags nothing",
			mutate: func(b *models.BidContext) {
				b.SellerIPs = []string{"10.0.0.1"}
			},
			score:      50,
			severity:   models.SeverityLow,
			action:     models.ActionAllow,
			factorKeys: []string{"same_ip"},
		},
		{
			name: "ip and device match blocks",
			mutate: func(b *models.BidContext) {
				b.SellerIPs = []string{"10.0.0.1"}
				b.SellerDevices = []string{"dev-1"}
			},
			score:      90,
			severity:   models.SeverityHigh,
			action:     models.ActionBlockAndReview,
			factorKeys: []string{"same_ip", "same_device"},
		},
		{
			name: "device shared with another bidder plus new account flags",
			mutate: func(b *models.BidContext) {
				b.AuctionDevices = []string{"dev-1"}
				b.Bidder.AccountAge = 24 * time.Hour
			},
			score:      60,
			severity:   models.SeverityMedium,
			action:     models.ActionFlagForReview,
			factorKeys: []string{"same_device", "new_account"},
		},
		{
			name: "ping pong with sniping and a cold account blocks",
			mutate: func(b *models.BidContext) {
				b.RecentBidders = []string{"shill", "bidder-1", "shill"}
				b.Auction.ScheduledEnd = now.Add(30 * time.Second)
				b.Bidder.ActivityScore = 0.1
				b.Bidder.AccountAge = time.Hour
			},
			score:      85,
			severity:   models.SeverityHigh,
			action:     models.ActionBlockAndReview,
			factorKeys: []string{"ping_pong", "last_minute", "low_activity", "new_account"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bctx := baseBidContext(now)
			tt.mutate(bctx)

			alert := testShillDetector().Evaluate(bctx)
			require.NotNil(t, alert)
			require.Equal(t, tt.score, alert.Score)
			require.Equal(t, tt.severity, alert.Severity)
			require.Equal(t, tt.action, alert.Action)
			require.Equal(t, models.SubjectBid, alert.SubjectType)
			require.Equal(t, "shill_bidding", alert.Detector)
			require.Len(t, alert.Factors, len(tt.factorKeys))
			for _, k := range tt.factorKeys {
				require.Contains(t, alert.Factors, k)
			}
		})
	}
}

func TestShillDetectorIgnoresEmptyIdentifiers(t *testing.T) {
	now := time.Now().UTC()
	bctx := baseBidContext(now)
	bctx.Bid.SourceIP = ""
	bctx.Bid.DeviceID = ""
	bctx.SellerIPs = []string{""}
	bctx.SellerDevices = []string{""}

	require.Nil(t, testShillDetector().Evaluate(bctx))
}

func TestPingPongPattern(t *testing.T) {
	tests := []struct {
		name   string
		recent []string
		bidder string
		want   bool
	}{
		{"alternating pair", []string{"a", "b", "a"}, "b", true},
		{"longer history", []string{"x", "a", "b", "a"}, "b", true},
		{"self alternation", []string{"b", "b", "b"}, "b", false},
		{"three participants", []string{"a", "b", "c"}, "b", false},
		{"too short", []string{"a", "b"}, "a", false},
		{"empty", nil, "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pingPong(tt.recent, tt.bidder))
		})
	}
}
