package api

import (
	"github.com/binary-options-sim/internal/engine"
	"github.com/binary-options-sim/internal/store"
)

// Wire types keep money as plain JSON numbers; decimals stay internal.

type activeTradeResponse struct {
	TradeID    string  `json:"trade_id"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	Amount     float64 `json:"amount"`
	PlacedAt   float64 `json:"placed_at"`
	ExpiresAt  float64 `json:"expires_at"`
	Remaining  int64   `json:"remaining"`
	EntryPrice float64 `json:"entry_price"`
}

type tradeResponse struct {
	TradeID   string   `json:"trade_id"`
	Pair      string   `json:"pair"`
	Side      string   `json:"side"`
	Amount    float64  `json:"amount"`
	PlacedAt  float64  `json:"placed_at"`
	ExpiresAt float64  `json:"expires_at"`
	Settled   bool     `json:"settled"`
	ExitPrice *float64 `json:"exit_price,omitempty"`
	Result    string   `json:"result,omitempty"`
}

func newTradeResponse(t *store.Trade) tradeResponse {
	return tradeResponse{
		TradeID:   t.ID,
		Pair:      t.Pair,
		Side:      string(t.Side),
		Amount:    t.Amount.InexactFloat64(),
		PlacedAt:  t.PlacedAt,
		ExpiresAt: t.ExpiresAt,
		Settled:   t.Settled,
		ExitPrice: t.ExitPrice,
		Result:    string(t.Result),
	}
}

type settlementResponse struct {
	Username   string  `json:"username"`
	TradeID    string  `json:"trade_id"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	Result     string  `json:"result"`
	Amount     float64 `json:"amount"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Balance    float64 `json:"balance"`
	SettledAt  float64 `json:"settled_at"`
}

func newSettlementResponse(s engine.Settlement) settlementResponse {
	return settlementResponse{
		Username:   s.Username,
		TradeID:    s.TradeID,
		Pair:       s.Pair,
		Side:       string(s.Side),
		Result:     string(s.Result),
		Amount:     s.Amount.InexactFloat64(),
		EntryPrice: s.EntryPrice,
		ExitPrice:  s.ExitPrice,
		Balance:    s.Balance.InexactFloat64(),
		SettledAt:  s.SettledAt,
	}
}
