package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmaven/paper-trader/internal/autotrader"
	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/ledger"
	"github.com/mmaven/paper-trader/internal/models"
	"github.com/mmaven/paper-trader/internal/oracle"
	"github.com/mmaven/paper-trader/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	st := store.NewMemory()
	cat := catalog.NewStatic(map[string]string{"2330": "TSMC"}, rand.New(rand.NewSource(1)))
	src := oracle.PriceFunc(func(context.Context, string) (decimal.Decimal, error) {
		return decimal.RequireFromString("600"), nil
	})

	engine := ledger.New(st, cat, src, ledger.WithRand(rand.New(rand.NewSource(1))))
	trader := autotrader.New(engine, st, cat, src, autotrader.WithRand(rand.New(rand.NewSource(1))))
	handler := NewHandler(engine, trader, st, src, nil, nil, nil)

	srv := httptest.NewServer(SetupRoutes(handler))
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestBuySellRoundTripOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	// Buy at the market price.
	resp, body := doJSON(t, http.MethodPost, base+"/buy",
		map[string]interface{}{"stock": "2330", "shares": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var buyResult ledger.TradeResult
	require.NoError(t, json.Unmarshal(body, &buyResult))
	assert.Equal(t, int64(10), buyResult.Position.Shares)
	assert.Equal(t, "(market price)", buyResult.Entry.Note)
	assert.True(t, buyResult.Entry.Amount.Equal(decimal.RequireFromString("6020")))

	// Portfolio shows the holding with a valuation.
	resp, body = doJSON(t, http.MethodGet, base+"/portfolio", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var portfolio PortfolioResponse
	require.NoError(t, json.Unmarshal(body, &portfolio))
	require.Len(t, portfolio.Positions, 1)
	assert.True(t, portfolio.Positions[0].AvgCost.Equal(decimal.RequireFromString("602")))
	require.NotNil(t, portfolio.Positions[0].UnrealizedPnL)

	// Sell at a custom price.
	resp, body = doJSON(t, http.MethodPost, base+"/sell",
		map[string]interface{}{"stock": "TSMC", "shares": 10, "price": "650"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var sellResult ledger.TradeResult
	require.NoError(t, json.Unmarshal(body, &sellResult))
	assert.Equal(t, "(custom price)", sellResult.Entry.Note)
	require.NotNil(t, sellResult.PnL)
	assert.True(t, sellResult.PnL.ProfitLoss.Equal(decimal.RequireFromString("440.5")))

	// P&L stats reflect the win.
	resp, body = doJSON(t, http.MethodGet, base+"/pnl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.PnLStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.True(t, stats.Total.Equal(decimal.RequireFromString("440.5")))
	assert.Equal(t, 1, stats.Wins)

	// Transactions: two entries, newest first.
	resp, body = doJSON(t, http.MethodGet, base+"/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []*models.Transaction
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, models.TransactionSell, entries[0].Type)
	assert.Equal(t, models.TransactionBuy, entries[1].Type)

	// Clear P&L.
	resp, body = doJSON(t, http.MethodPost, base+"/pnl/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared map[string]decimal.Decimal
	require.NoError(t, json.Unmarshal(body, &cleared))
	assert.True(t, cleared["cleared"].Equal(decimal.RequireFromString("440.5")))
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	// Selling with no holdings conflicts.
	resp, _ := doJSON(t, http.MethodPost, base+"/sell",
		map[string]interface{}{"stock": "2330", "shares": 10})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown stock is not found.
	resp, _ = doJSON(t, http.MethodPost, base+"/buy",
		map[string]interface{}{"stock": "9999", "shares": 10})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Non-positive shares are invalid.
	resp, _ = doJSON(t, http.MethodPost, base+"/buy",
		map[string]interface{}{"stock": "2330", "shares": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Adjusting cost of a stock never held is not found.
	resp, _ = doJSON(t, http.MethodPost, base+"/adjust-cost",
		map[string]interface{}{"stock": "2330", "new_avg_cost": "650"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Out-of-range transaction limits are rejected.
	resp, _ = doJSON(t, http.MethodGet, base+"/transactions?limit=21", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Settling with nothing pending is not found.
	resp, _ = doJSON(t, http.MethodPost, base+"/settlement/price",
		map[string]string{"price": "650"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPendingTradeGatesTradingCommands(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	resp, body := doJSON(t, http.MethodPost, base+"/trades/random", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var proposal models.PendingTrade
	require.NoError(t, json.Unmarshal(body, &proposal))
	assert.Equal(t, "2330", proposal.StockCode)
	assert.Positive(t, proposal.Shares)

	// Buy, sell, adjust-cost, autotrade, and a second proposal are all
	// blocked until the proposal resolves.
	blocked := []struct {
		method, path string
		payload      interface{}
	}{
		{http.MethodPost, "/buy", map[string]interface{}{"stock": "2330", "shares": 1}},
		{http.MethodPost, "/sell", map[string]interface{}{"stock": "2330", "shares": 1}},
		{http.MethodPost, "/adjust-cost", map[string]interface{}{"stock": "2330", "new_avg_cost": "650"}},
		{http.MethodPost, "/autotrade", nil},
		{http.MethodPost, "/trades/random", nil},
	}
	for _, tc := range blocked {
		resp, _ := doJSON(t, tc.method, base+tc.path, tc.payload)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "%s %s", tc.method, tc.path)
	}

	// Confirm executes the proposal and lifts the gate.
	resp, body = doJSON(t, http.MethodPost, base+"/trades/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result ledger.TradeResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, proposal.Shares, result.Position.Shares)

	resp, _ = doJSON(t, http.MethodPost, base+"/trades/confirm", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/buy",
		map[string]interface{}{"stock": "2330", "shares": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCancelPendingTradeOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	resp, _ := doJSON(t, http.MethodPost, base+"/trades/random", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/trades/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, base+"/trades/pending", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSettingsLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	// First access creates the defaults.
	resp, body := doJSON(t, http.MethodGet, base+"/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings models.UserSettings
	require.NoError(t, json.Unmarshal(body, &settings))
	assert.Equal(t, int64(models.DefaultMinAmount), settings.MinAmount)
	assert.Equal(t, models.DefaultBuyWeight, settings.BuyWeight)

	// Update.
	resp, body = doJSON(t, http.MethodPut, base+"/settings", map[string]interface{}{
		"min_amount": 10000, "max_amount": 50000,
		"buy_weight": 50, "sell_weight": 25, "hold_weight": 25,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &settings))
	assert.Equal(t, int64(10000), settings.MinAmount)

	// Invalid updates are rejected.
	resp, _ = doJSON(t, http.MethodPut, base+"/settings", map[string]interface{}{
		"min_amount": 50000, "max_amount": 10000,
		"buy_weight": 50, "sell_weight": 25, "hold_weight": 25,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Reset restores the defaults.
	resp, body = doJSON(t, http.MethodPost, base+"/settings/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &settings))
	assert.Equal(t, int64(models.DefaultMinAmount), settings.MinAmount)
	assert.Equal(t, int64(models.DefaultMaxAmount), settings.MaxAmount)
}

func TestAutoTradeSettlementFlowOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	// Seed a holding and force the auto-trader to sell.
	resp, _ := doJSON(t, http.MethodPost, base+"/buy",
		map[string]interface{}{"stock": "2330", "shares": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	settings := models.DefaultSettings("user1")
	settings.BuyWeight = 0
	settings.SellWeight = 100
	settings.HoldWeight = 0
	require.NoError(t, st.SaveSettings(context.Background(), settings))

	resp, body := doJSON(t, http.MethodPost, base+"/autotrade",
		map[string]interface{}{"channel_id": "chan1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result autotrader.Result
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, autotrader.ActionSell, result.Action)
	require.NotNil(t, result.Settlement)

	// A second auto-trade is blocked by the pending settlement.
	resp, _ = doJSON(t, http.MethodPost, base+"/autotrade", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The settlement is queryable.
	resp, body = doJSON(t, http.MethodGet, base+"/settlement", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settlement models.PendingSettlement
	require.NoError(t, json.Unmarshal(body, &settlement))
	assert.Equal(t, result.Settlement.SharesToSell, settlement.SharesToSell)

	// Garbage price input is a 400 and keeps the settlement.
	resp, _ = doJSON(t, http.MethodPost, base+"/settlement/price",
		map[string]string{"price": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, base+"/settlement", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A valid price executes the sell and clears the settlement.
	resp, body = doJSON(t, http.MethodPost, base+"/settlement/price",
		map[string]string{"price": "650"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var trade ledger.TradeResult
	require.NoError(t, json.Unmarshal(body, &trade))
	require.NotNil(t, trade.PnL)

	resp, _ = doJSON(t, http.MethodGet, base+"/settlement", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAutoTradeBoundsValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/users/user1"

	resp, _ := doJSON(t, http.MethodPost, base+"/autotrade",
		map[string]interface{}{"min_amount": 5000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/autotrade",
		map[string]interface{}{"min_amount": 9000, "max_amount": 3000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheckWithoutBackends(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "unhealthy", health["status"])
}

func TestPriceUnavailableMapsToBadGateway(t *testing.T) {
	st := store.NewMemory()
	cat := catalog.NewStatic(map[string]string{"2330": "TSMC"}, rand.New(rand.NewSource(1)))
	src := oracle.PriceFunc(func(context.Context, string) (decimal.Decimal, error) {
		return decimal.Zero, fmt.Errorf("%w: feed down", oracle.ErrUnavailable)
	})
	engine := ledger.New(st, cat, src)
	trader := autotrader.New(engine, st, cat, src)
	srv := httptest.NewServer(SetupRoutes(NewHandler(engine, trader, st, src, nil, nil, nil)))
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/user1/buy",
		map[string]interface{}{"stock": "2330", "shares": 10})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/user1/trades/random", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
