package features

import (
	"fmt"
	"testing"
	"time"

	"Gavel/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func TestUpdateOnBidInitializesNewProfile(t *testing.T) {
	now := time.Now().UTC()
	p := &models.BidderProfile{BidderID: "b1"}
	bid := &models.Bid{BidderID: "b1", SourceIP: "10.0.0.1", DeviceID: "dev-1"}

	UpdateOnBid(p, bid, now)

	require.Equal(t, now, p.CreatedAt)
	require.Zero(t, p.AccountAge)
	require.Equal(t, now, p.LastBidAt)
	require.InDelta(t, 0.05, p.ActivityScore, 1e-9)
	require.Equal(t, []string{"10.0.0.1"}, p.KnownIPs)
	require.Equal(t, []string{"dev-1"}, p.KnownDevices)
}

func TestUpdateOnBidAccumulatesActivity(t *testing.T) {
	now := time.Now().UTC()
	p := &models.BidderProfile{BidderID: "b1", CreatedAt: now.Add(-30 * 24 * time.Hour)}
	bid := &models.Bid{BidderID: "b1"}

	// Rapid bidding climbs toward saturation without passing it.
	for i := 0; i < 30; i++ {
		UpdateOnBid(p, bid, now.Add(time.Duration(i)*time.Minute))
	}
	require.LessOrEqual(t, p.ActivityScore, 1.0)
	require.Greater(t, p.ActivityScore, 0.9)
	require.Equal(t, 30*24*time.Hour+29*time.Minute, p.AccountAge)
}

func TestUpdateOnBidDecaysIdleScore(t *testing.T) {
	now := time.Now().UTC()
	p := &models.BidderProfile{
		BidderID:      "b1",
		CreatedAt:     now.Add(-60 * 24 * time.Hour),
		ActivityScore: 0.8,
		LastBidAt:     now.Add(-7 * 24 * time.Hour),
	}

	UpdateOnBid(p, &models.Bid{BidderID: "b1"}, now)

	// One half-life idle: 0.8 -> 0.4, plus the new bid's bump.
	require.InDelta(t, 0.45, p.ActivityScore, 1e-9)
	require.Equal(t, now, p.LastBidAt)
}

func TestUpdateOnBidDeduplicatesIdentifiers(t *testing.T) {
	now := time.Now().UTC()
	p := &models.BidderProfile{BidderID: "b1"}

	for i := 0; i < 3; i++ {
		UpdateOnBid(p, &models.Bid{BidderID: "b1", SourceIP: "10.0.0.1", DeviceID: "dev-1"}, now)
	}
	require.Len(t, p.KnownIPs, 1)
	require.Len(t, p.KnownDevices, 1)
}

func TestUpdateOnBidBoundsIdentifierSets(t *testing.T) {
	now := time.Now().UTC()
	p := &models.BidderProfile{BidderID: "b1"}

	for i := 0; i < 25; i++ {
		UpdateOnBid(p, &models.Bid{BidderID: "b1", SourceIP: fmt.Sprintf("10.0.0.%d", i)}, now)
	}
	require.Len(t, p.KnownIPs, maxKnownIPs)
	// Oldest entries are evicted first.
	require.NotContains(t, p.KnownIPs, "10.0.0.0")
	require.Contains(t, p.KnownIPs, "10.0.0.24")
}
