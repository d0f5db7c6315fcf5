package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veildex/veildex/pkg/api"
	"github.com/veildex/veildex/pkg/exchange"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	ledger, err := exchange.NewLedger(exchange.NopStore{}, exchange.Params{
		Admin: admin,
		SeedPrices: map[string]int64{
			"BTC/ETH":  15,
			"ETH/USDT": 3500,
		},
	})
	require.NoError(t, err)
	return api.NewServer(ledger, nil).Handler()
}

// do issues a request with an optional caller identity and decodes the
// JSON response into out (when non-nil).
func do(t *testing.T, h http.Handler, method, path string, caller string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Account-Address", caller)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, "GET", "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceOrderRequiresCaller(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, "POST", "/api/v1/orders", "", api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "long", Amount: 10, Price: 15,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/api/v1/orders", "not-an-address", api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "long", Amount: 10, Price: 15,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderAndDisclosure(t *testing.T) {
	h := newTestHandler(t)

	var placed api.PlaceOrderResponse
	rec := do(t, h, "POST", "/api/v1/orders", alice.Hex(), api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "short", Amount: 4, Price: 100,
	}, &placed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), placed.OrderID)
	assert.Equal(t, "active", placed.Status)

	// Stranger sees the summary without amount or price.
	var summary api.OrderResponse
	rec = do(t, h, "GET", "/api/v1/orders/1", bob.Hex(), nil, &summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.Hex(), summary.Trader)
	assert.Equal(t, "short", summary.Direction)
	assert.Nil(t, summary.Amount)
	assert.Nil(t, summary.Price)

	// Owner sees everything.
	var full api.OrderResponse
	rec = do(t, h, "GET", "/api/v1/orders/1", alice.Hex(), nil, &full)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, full.Amount)
	require.NotNil(t, full.Price)
	assert.Equal(t, int64(4), *full.Amount)
	assert.Equal(t, int64(100), *full.Price)

	// So does the privileged account.
	var privileged api.OrderResponse
	rec = do(t, h, "GET", "/api/v1/orders/1", admin.Hex(), nil, &privileged)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, privileged.Amount)
}

func TestValidationRejected(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, "POST", "/api/v1/orders", alice.Hex(), api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "long", Amount: 0, Price: 15,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var stats api.StatsResponse
	do(t, h, "GET", "/api/v1/stats", "", nil, &stats)
	assert.Zero(t, stats.OrderCount)
	assert.Zero(t, stats.TradeCount)
}

func TestQuickTradeAndBalance(t *testing.T) {
	h := newTestHandler(t)

	var quick api.QuickTradeResponse
	rec := do(t, h, "POST", "/api/v1/quick-trades", alice.Hex(), api.QuickTradeRequest{
		Pair: "BTC/ETH", Direction: "long", Amount: 10,
	}, &quick)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), quick.TradeID)

	// Owner reads the balance.
	var bal api.BalanceResponse
	rec = do(t, h, "GET", "/api/v1/accounts/"+alice.Hex()+"/balance?pair=BTC/ETH", alice.Hex(), nil, &bal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10), bal.Balance)

	// Stranger is refused.
	rec = do(t, h, "GET", "/api/v1/accounts/"+alice.Hex()+"/balance?pair=BTC/ETH", bob.Hex(), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelOrderConflict(t *testing.T) {
	h := newTestHandler(t)

	var placed api.PlaceOrderResponse
	do(t, h, "POST", "/api/v1/orders", alice.Hex(), api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "short", Amount: 4, Price: 100,
	}, &placed)

	rec := do(t, h, "POST", "/api/v1/orders/cancel", bob.Hex(), api.CancelOrderRequest{OrderID: placed.OrderID}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, "POST", "/api/v1/orders/cancel", alice.Hex(), api.CancelOrderRequest{OrderID: placed.OrderID}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "POST", "/api/v1/orders/cancel", alice.Hex(), api.CancelOrderRequest{OrderID: placed.OrderID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "POST", "/api/v1/orders/cancel", alice.Hex(), api.CancelOrderRequest{OrderID: 999}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPricesPublicAndPrivilegedUpdate(t *testing.T) {
	h := newTestHandler(t)

	var price api.PriceResponse
	rec := do(t, h, "GET", "/api/v1/prices?pair=BTC/ETH", "", nil, &price)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(15), price.Price)

	// Unknown pairs report zero.
	do(t, h, "GET", "/api/v1/prices?pair=NO/PAIR", "", nil, &price)
	assert.Zero(t, price.Price)

	rec = do(t, h, "POST", "/api/v1/prices", alice.Hex(), api.UpdatePriceRequest{Pair: "BTC/ETH", Price: 20}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, "POST", "/api/v1/prices", admin.Hex(), api.UpdatePriceRequest{Pair: "BTC/ETH", Price: 20}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	do(t, h, "GET", "/api/v1/prices?pair=BTC/ETH", "", nil, &price)
	assert.Equal(t, int64(20), price.Price)

	var all []api.PriceResponse
	rec = do(t, h, "GET", "/api/v1/prices", "", nil, &all)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, all, 2)
}

func TestRevealFlow(t *testing.T) {
	h := newTestHandler(t)

	var placed api.PlaceOrderResponse
	do(t, h, "POST", "/api/v1/orders", alice.Hex(), api.PlaceOrderRequest{
		Pair: "BTC/ETH", Direction: "short", Amount: 4, Price: 100,
	}, &placed)

	var reveal api.RevealResponse
	rec := do(t, h, "POST", "/api/v1/reveals", alice.Hex(), api.RevealRequestBody{
		OrderID: placed.OrderID, Field: "amount",
	}, &reveal)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotZero(t, reveal.RequestID)

	// The callback is gated to the privileged account.
	rec = do(t, h, "POST", "/api/v1/oracle/callback", bob.Hex(), api.OracleCallbackRequest{
		RequestID: reveal.RequestID, Value: 4,
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, "POST", "/api/v1/oracle/callback", admin.Hex(), api.OracleCallbackRequest{
		RequestID: reveal.RequestID, Value: 4,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Exactly-once delivery.
	rec = do(t, h, "POST", "/api/v1/oracle/callback", admin.Hex(), api.OracleCallbackRequest{
		RequestID: reveal.RequestID, Value: 4,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var result api.RevealResponse
	rec = do(t, h, "GET", "/api/v1/reveals/1", alice.Hex(), nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.Delivered)
	require.NotNil(t, result.Value)
	assert.Equal(t, int64(4), *result.Value)

	rec = do(t, h, "GET", "/api/v1/reveals/1", bob.Hex(), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
