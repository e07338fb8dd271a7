package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gavel/internal/domain/models"
	"Gavel/internal/repository"
	"Gavel/internal/services/fraud"
	"Gavel/internal/usecase"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct{}

func (nopMetrics) RecordBidAccepted(string)         {}
func (nopMetrics) RecordBidRejected(string)         {}
func (nopMetrics) RecordFraudAlert(string)          {}
func (nopMetrics) RecordEscrowTransition(string)    {}
func (nopMetrics) RecordCurrentPrice(string, int64) {}
func (nopMetrics) RecordActiveAuctions(int)         {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

type apiEnv struct {
	e      *echo.Echo
	store  *repository.MemoryStore
	ledger *usecase.DepositLedger
	escrow *usecase.EscrowCoordinator
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	lgr, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	ledger := usecase.NewDepositLedger(store, 0)
	escrow := usecase.NewEscrowCoordinator(store, ledger, nil, nopMetrics{}, lgr, time.Hour)
	registry := usecase.NewRegistry(store, ledger, escrow, nil, nopMetrics{}, lgr)
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	shill := fraud.NewShillDetector(fraud.DefaultShillWeights(), 80, 60, 7*24*time.Hour, time.Minute, 0.3)
	scorer := fraud.NewScorer(shill, fraud.NewWeightDetector(10, 5, 3), nil, nil, lgr)
	processor := usecase.NewBidProcessor(registry, scorer, store, nil, nopMetrics{}, lgr, nil, 2*time.Second)

	e := echo.New()
	NewAuctionsEchoHandler(lgr, registry, nil).RegisterRoutes(e)
	NewBidsEchoHandler(lgr, processor).RegisterRoutes(e)
	NewDepositsEchoHandler(lgr, ledger).RegisterRoutes(e)
	NewEscrowEchoHandler(lgr, escrow, scorer).RegisterRoutes(e)
	NewAdminEchoHandler(lgr, store, ledger).RegisterRoutes(e)

	return &apiEnv{e: e, store: store, ledger: ledger, escrow: escrow}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *apiEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code == http.StatusNoContent {
		return rec, nil
	}
	out := &envelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	return rec, out
}

func (env *apiEnv) seedActiveAuction(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, env.store.Put(ctx, &models.Auction{
		ID:             id,
		Title:          "test lot",
		SellerID:       "seller-1",
		Format:         models.FormatAscending,
		Status:         models.StatusActive,
		StartingPrice:  1000,
		CurrentPrice:   1000,
		BidIncrement:   100,
		ScheduledStart: now.Add(-time.Hour),
		ScheduledEnd:   now.Add(time.Hour),
	}))
	require.NoError(t, env.store.Put(ctx, &models.BidLog{AuctionID: id}))
}

func TestCreateAuctionEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()

	_, resp := env.do(t, http.MethodPost, "/api/auctions", map[string]interface{}{
		"title":           "brass telescope",
		"seller_id":       "seller-1",
		"format":          "ascending",
		"starting_price":  1000,
		"bid_increment":   100,
		"scheduled_start": now,
		"scheduled_end":   now.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.Status)

	var a models.Auction
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	require.NotEmpty(t, a.ID)
	require.Equal(t, models.StatusScheduled, a.Status)
	require.Equal(t, int64(1000), a.CurrentPrice)
	// Request defaults fill the anti-snipe settings.
	require.Equal(t, 2*time.Minute, a.ExtensionWindow)
	require.Equal(t, 3, a.MaxExtensions)
}

func TestCreateAuctionValidation(t *testing.T) {
	env := newAPIEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/auctions", map[string]interface{}{
		"title":          "bad format",
		"seller_id":      "seller-1",
		"format":         "reverse",
		"starting_price": 1000,
	})
	require.Equal(t, http.StatusBadRequest, resp.Status)

	var verrs []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &verrs))
	require.NotEmpty(t, verrs)
	require.Equal(t, "ERR_ONEOF", verrs[0]["code"])
}

func TestSubmitBidEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.seedActiveAuction(t, "auc-1")

	_, resp := env.do(t, http.MethodPost, "/api/accounts/bidder-1/deposits", map[string]interface{}{"amount": 5000})
	require.Equal(t, http.StatusOK, resp.Status)

	_, resp = env.do(t, http.MethodPost, "/api/auctions/auc-1/bids", map[string]interface{}{
		"bidder_id": "bidder-1",
		"amount":    1200,
	})
	require.Equal(t, http.StatusCreated, resp.Status)

	var bid models.Bid
	require.NoError(t, json.Unmarshal(resp.Data, &bid))
	require.Equal(t, "bidder-1", bid.BidderID)
	require.Equal(t, int64(1200), bid.Amount)
}

func TestSubmitBidDomainErrors(t *testing.T) {
	env := newAPIEnv(t)
	env.seedActiveAuction(t, "auc-1")
	_, resp := env.do(t, http.MethodPost, "/api/accounts/bidder-1/deposits", map[string]interface{}{"amount": 5000})
	require.Equal(t, http.StatusOK, resp.Status)

	tests := []struct {
		name   string
		path   string
		amount int64
		bidder string
		status int
		code   string
	}{
		{"bid too low", "/api/auctions/auc-1/bids", 500, "bidder-1", http.StatusUnprocessableEntity, "ERR_BID_TOO_LOW"},
		{"insufficient deposit", "/api/auctions/auc-1/bids", 100000, "bidder-1", http.StatusPaymentRequired, "ERR_INSUFFICIENT_DEPOSIT"},
		{"unknown auction", "/api/auctions/ghost/bids", 1200, "bidder-1", http.StatusNotFound, "ERR_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := env.do(t, http.MethodPost, tt.path, map[string]interface{}{
				"bidder_id": tt.bidder,
				"amount":    tt.amount,
			})
			require.Equal(t, tt.status, resp.Status)

			var appErrs []map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Data, &appErrs))
			require.Len(t, appErrs, 1)
			require.Equal(t, tt.code, appErrs[0]["code"])
		})
	}
}

func TestAuctionSnapshotEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.seedActiveAuction(t, "auc-1")

	_, resp := env.do(t, http.MethodGet, "/api/auctions/auc-1", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	var a models.Auction
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	require.Equal(t, "auc-1", a.ID)
	require.Equal(t, models.StatusActive, a.Status)
}

func TestAccountEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/accounts/u1/deposits", map[string]interface{}{"amount": 5000})
	require.Equal(t, http.StatusOK, resp.Status)

	_, resp = env.do(t, http.MethodGet, "/api/accounts/u1", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	var acct struct {
		Account   *models.DepositAccount `json:"account"`
		Available int64                  `json:"available"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &acct))
	require.Equal(t, int64(5000), acct.Account.Balance)
	require.Equal(t, int64(5000), acct.Available)

	// Non-positive credits are rejected by validation.
	_, resp = env.do(t, http.MethodPost, "/api/accounts/u1/deposits", map[string]interface{}{"amount": -5})
	require.Equal(t, http.StatusBadRequest, resp.Status)

	_, resp = env.do(t, http.MethodPost, "/api/accounts/u1/withdrawals", map[string]interface{}{"amount": 2000})
	require.Equal(t, http.StatusOK, resp.Status)

	// Withdrawing past the available balance is a payment error.
	_, resp = env.do(t, http.MethodPost, "/api/accounts/u1/withdrawals", map[string]interface{}{"amount": 9000})
	require.Equal(t, http.StatusPaymentRequired, resp.Status)
}

func TestEscrowEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	_, err := env.ledger.Credit(ctx, "buyer", 5000)
	require.NoError(t, err)
	hold, err := env.ledger.Hold(ctx, "buyer", "auc-1", 2000, models.HoldReasonBuyNow)
	require.NoError(t, err)
	esc, err := env.escrow.Open(ctx, &models.Auction{
		ID: "auc-1", SellerID: "seller", WinnerID: "buyer",
		WinningHoldID: hold.ID, CurrentPrice: 2000,
	}, "order-1")
	require.NoError(t, err)
	for _, advance := range []func() error{
		func() error { _, err := env.escrow.DepositReceived(ctx, esc.ID); return err },
		func() error { _, err := env.escrow.CarrierPickup(ctx, esc.ID); return err },
		func() error { _, err := env.escrow.Delivered(ctx, esc.ID); return err },
	} {
		require.NoError(t, advance())
	}

	_, resp := env.do(t, http.MethodPost, "/api/escrows/"+esc.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	// The dispute window is still open, so release is refused.
	_, resp = env.do(t, http.MethodPost, "/api/escrows/"+esc.ID+"/release", nil)
	require.Equal(t, http.StatusConflict, resp.Status)

	_, resp = env.do(t, http.MethodGet, "/api/escrows/"+esc.ID, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var got models.EscrowTransaction
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Equal(t, models.EscrowConfirmed, got.State)
}

func TestWeightCheckEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/weight-checks", map[string]interface{}{
		"order_id":        "order-1",
		"declared_weight": 100.0,
		"actual_weight":   112.0,
	})
	require.Equal(t, http.StatusOK, resp.Status)

	var verdict struct {
		Blocked bool                 `json:"blocked"`
		Alerts  []*models.FraudAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &verdict))
	require.True(t, verdict.Blocked)
	require.Len(t, verdict.Alerts, 1)
	require.Equal(t, models.ActionBlockTransaction, verdict.Alerts[0].Action)
}

func TestAdminEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Put(ctx, &models.FraudAlert{
		ID:          "al-1",
		SubjectType: models.SubjectBid,
		SubjectID:   "bid-1",
		Score:       65,
		Severity:    models.SeverityMedium,
		Action:      models.ActionFlagForReview,
		Detector:    "shill_bidding",
		CreatedAt:   time.Now().UTC(),
	}))

	_, resp := env.do(t, http.MethodGet, "/api/admin/alerts", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var list struct {
		Rows  []*models.FraudAlert `json:"rows"`
		Total int64                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Equal(t, int64(1), list.Total)
	require.Equal(t, "al-1", list.Rows[0].ID)

	_, resp = env.do(t, http.MethodPost, "/api/admin/holds/sweep", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var swept map[string]int
	require.NoError(t, json.Unmarshal(resp.Data, &swept))
	require.Zero(t, swept["released"])
}

func TestAuctionLifecycleEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, env.store.Put(ctx, &models.Auction{
		ID:             "auc-1",
		SellerID:       "seller-1",
		Format:         models.FormatAscending,
		Status:         models.StatusScheduled,
		StartingPrice:  1000,
		CurrentPrice:   1000,
		ScheduledStart: now.Add(-time.Hour),
		ScheduledEnd:   now.Add(time.Hour),
	}))
	require.NoError(t, env.store.Put(ctx, &models.BidLog{AuctionID: "auc-1"}))

	rec, _ := env.do(t, http.MethodPost, "/api/auctions/auc-1/activate", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Activating an already-active auction is an illegal transition.
	_, resp := env.do(t, http.MethodPost, "/api/auctions/auc-1/activate", nil)
	require.Equal(t, http.StatusConflict, resp.Status)

	rec, _ = env.do(t, http.MethodPost, "/api/auctions/auc-1/close", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
