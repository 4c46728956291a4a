package engine

import (
	"github.com/shopspring/decimal"

	"github.com/binary-options-sim/internal/store"
)

// Settlement describes one trade transitioning unsettled → settled. Emitted
// by SettleExpired for streaming and notification consumers.
type Settlement struct {
	Username   string            `json:"username"`
	TradeID    string            `json:"trade_id"`
	Pair       string            `json:"pair"`
	Side       store.TradeSide   `json:"side"`
	Result     store.TradeResult `json:"result"`
	Amount     decimal.Decimal   `json:"amount"`
	EntryPrice float64           `json:"entry_price"`
	ExitPrice  float64           `json:"exit_price"`
	Balance    decimal.Decimal   `json:"balance"`
	SettledAt  float64           `json:"settled_at"`
}
