package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
	"github.com/binary-options-sim/internal/oracle"
	"github.com/binary-options-sim/internal/store"
)

const apiTestSeed int64 = 777

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	st, err := store.New(store.MemoryPersister{})
	require.NoError(t, err)
	st.SetSeedSource(func() int64 { return apiTestSeed })

	eng := engine.New(st, config.EngineConfig{
		InitialBalance: 1000,
		PayoutRatio:    0.95,
		DefaultPairs:   []string{"EUR/USD"},
	})
	eng.SetClock(func() time.Time { return time.Unix(1700000000, 0) })

	cfg := config.ServerConfig{
		BindAddress: "127.0.0.1:0",
		CORSOrigins: []string{"http://localhost:3000"},
	}
	return NewServer(cfg, eng, make(chan engine.Settlement)), eng
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(v))
}

func TestGetUserDataMissingUsername(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv.Handler(), "GET", "/api/v1/user-data", nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	decodeBody(t, recorder, &body)
	assert.False(t, body.OK)
	assert.Equal(t, "missing username", body.Error)
}

func TestGetUserDataNewUser(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv.Handler(), "GET", "/api/v1/user-data?username=alice", nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		OK           bool             `json:"ok"`
		Balance      float64          `json:"balance"`
		ActiveTrades []json.RawMessage `json:"active_trades"`
		PairSeeds    map[string]int64 `json:"pair_seeds"`
	}
	decodeBody(t, recorder, &body)
	assert.True(t, body.OK)
	assert.Equal(t, 1000.0, body.Balance)
	assert.Empty(t, body.ActiveTrades)
	assert.Equal(t, apiTestSeed, body.PairSeeds["EUR/USD"])
}

func TestOpenTrade(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	recorder := doRequest(t, handler, "POST", "/api/v1/trades", map[string]interface{}{
		"username": "alice",
		"pair":     "EUR/USD",
		"side":     "buy",
		"amount":   100,
		"duration": 60,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		OK         bool    `json:"ok"`
		TradeID    string  `json:"trade_id"`
		NewBalance float64 `json:"new_balance"`
	}
	decodeBody(t, recorder, &body)
	assert.True(t, body.OK)
	assert.NotEmpty(t, body.TradeID)
	assert.Equal(t, 900.0, body.NewBalance)
}

func TestOpenTradeRejections(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	cases := []struct {
		name    string
		payload map[string]interface{}
		status  int
		message string
	}{
		{
			name: "bad side",
			payload: map[string]interface{}{
				"username": "alice", "pair": "EUR/USD", "side": "hold",
				"amount": 100, "duration": 60,
			},
			status:  http.StatusBadRequest,
			message: "invalid payload",
		},
		{
			name: "negative amount",
			payload: map[string]interface{}{
				"username": "alice", "pair": "EUR/USD", "side": "buy",
				"amount": -10, "duration": 60,
			},
			status:  http.StatusBadRequest,
			message: "invalid payload",
		},
		{
			name: "over balance",
			payload: map[string]interface{}{
				"username": "alice", "pair": "EUR/USD", "side": "buy",
				"amount": 2000, "duration": 60,
			},
			status:  http.StatusBadRequest,
			message: "insufficient balance",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := doRequest(t, handler, "POST", "/api/v1/trades", tc.payload)
			assert.Equal(t, tc.status, recorder.Code)

			var body struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			decodeBody(t, recorder, &body)
			assert.False(t, body.OK)
			assert.Equal(t, tc.message, body.Error)
		})
	}
}

func TestSettleTrade(t *testing.T) {
	srv, eng := newTestServer(t)
	handler := srv.Handler()

	recorder := doRequest(t, handler, "POST", "/api/v1/trades", map[string]interface{}{
		"username": "alice",
		"pair":     "EUR/USD",
		"side":     "buy",
		"amount":   100,
		"duration": 60,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var opened struct {
		TradeID string `json:"trade_id"`
	}
	decodeBody(t, recorder, &opened)

	// Past expiry the settle endpoint reports the final state.
	eng.SetClock(func() time.Time { return time.Unix(1700000061, 0) })

	recorder = doRequest(t, handler,
		"POST", fmt.Sprintf("/api/v1/trades/%s/settle", opened.TradeID),
		map[string]interface{}{"username": "alice"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		OK    bool `json:"ok"`
		Trade struct {
			TradeID   string   `json:"trade_id"`
			Settled   bool     `json:"settled"`
			ExitPrice *float64 `json:"exit_price"`
			Result    string   `json:"result"`
		} `json:"trade"`
		Balance float64 `json:"balance"`
	}
	decodeBody(t, recorder, &body)
	assert.True(t, body.OK)
	assert.Equal(t, opened.TradeID, body.Trade.TradeID)
	assert.True(t, body.Trade.Settled)
	require.NotNil(t, body.Trade.ExitPrice)

	if body.Trade.Result == "win" {
		assert.Equal(t, 1095.0, body.Balance)
	} else {
		assert.Equal(t, "loss", body.Trade.Result)
		assert.Equal(t, 900.0, body.Balance)
	}
}

func TestSettleTradeErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	recorder := doRequest(t, handler, "POST", "/api/v1/trades/some-id/settle",
		map[string]interface{}{"username": ""})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, handler, "POST", "/api/v1/trades/some-id/settle",
		map[string]interface{}{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Known user, unknown trade.
	doRequest(t, handler, "GET", "/api/v1/user-data?username=alice", nil)
	recorder = doRequest(t, handler, "POST", "/api/v1/trades/some-id/settle",
		map[string]interface{}{"username": "alice"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, recorder, &body)
	assert.Equal(t, "trade not found", body.Error)
}

func TestGetPriceAt(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv.Handler(), "GET", "/api/v1/price-at?pair=EUR/USD&ts=1700000000", nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Price float64 `json:"price"`
		Seed  int64   `json:"seed"`
	}
	decodeBody(t, recorder, &body)
	assert.Equal(t, apiTestSeed, body.Seed)
	assert.Equal(t, oracle.Price(apiTestSeed, 1700000000), body.Price)
}

func TestGetPriceHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	recorder := doRequest(t, handler,
		"GET", "/api/v1/price-history?pair=EUR/USD&from=1700000000&to=1700000300&step=60", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Pair   string         `json:"pair"`
		Seed   int64          `json:"seed"`
		Points []oracle.Point `json:"points"`
		Count  int            `json:"count"`
	}
	decodeBody(t, recorder, &body)
	assert.Equal(t, "EUR/USD", body.Pair)
	assert.Equal(t, apiTestSeed, body.Seed)
	assert.Equal(t, 6, body.Count)
	require.Len(t, body.Points, 6)
	assert.Equal(t, int64(1700000000), body.Points[0].Timestamp)

	// Missing pair and oversized ranges are rejected.
	recorder = doRequest(t, handler, "GET", "/api/v1/price-history", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, handler,
		"GET", "/api/v1/price-history?pair=EUR/USD&from=0&to=100000000&step=1", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv.Handler(), "GET", "/api/v1/health", nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Status string `json:"status"`
	}
	decodeBody(t, recorder, &body)
	assert.Equal(t, "healthy", body.Status)
}

func TestRateLimit(t *testing.T) {
	st, err := store.New(store.MemoryPersister{})
	require.NoError(t, err)
	eng := engine.New(st, config.EngineConfig{InitialBalance: 1000, PayoutRatio: 0.95})

	srv := NewServer(config.ServerConfig{
		CORSOrigins:        []string{"*"},
		RateLimitPerSecond: 1,
	}, eng, make(chan engine.Settlement))
	handler := srv.Handler()

	first := doRequest(t, handler, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, handler, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
