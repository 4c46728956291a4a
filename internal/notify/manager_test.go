package notify

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
	"github.com/binary-options-sim/internal/store"
)

func TestRunDisabledReturnsImmediately(t *testing.T) {
	manager := NewManager(config.NotifyConfig{Enabled: false}, make(chan engine.Settlement))
	err := manager.Run(context.Background())
	assert.NoError(t, err)
}

func TestCooldownGatesRepeatNotifies(t *testing.T) {
	manager := NewManager(config.NotifyConfig{
		Enabled:      true,
		CooldownSecs: 300,
	}, make(chan engine.Settlement))

	settlement := engine.Settlement{
		Username: "alice",
		Pair:     "EUR/USD",
		Side:     store.SideBuy,
		Result:   store.ResultWin,
		Amount:   decimal.NewFromInt(100),
		Balance:  decimal.NewFromInt(1095),
	}

	assert.False(t, manager.inCooldown("alice"))
	manager.handleSettlement(settlement)
	assert.True(t, manager.inCooldown("alice"))

	// Other users are gated independently.
	assert.False(t, manager.inCooldown("bob"))
}

func TestNewManagerClientWiring(t *testing.T) {
	manager := NewManager(config.NotifyConfig{
		SlackWebhookURL: "https://hooks.slack.com/services/x",
	}, make(chan engine.Settlement))
	require.NotNil(t, manager.slackClient)
	assert.Nil(t, manager.discordClient)

	manager = NewManager(config.NotifyConfig{
		DiscordWebhookURL: "https://discord.com/api/webhooks/x",
	}, make(chan engine.Settlement))
	assert.Nil(t, manager.slackClient)
	require.NotNil(t, manager.discordClient)
}

func TestFormatSettlementMessage(t *testing.T) {
	message := formatSettlementMessage(engine.Settlement{
		Username:   "alice",
		TradeID:    "t-1",
		Pair:       "EUR/USD",
		Side:       store.SideSell,
		Result:     store.ResultLoss,
		Amount:     decimal.NewFromInt(50),
		EntryPrice: 1.2345,
		ExitPrice:  1.25,
		Balance:    decimal.NewFromInt(950),
	})

	assert.Contains(t, message, "Trade settled: loss")
	assert.Contains(t, message, "User: alice")
	assert.Contains(t, message, "EUR/USD (sell)")
	assert.Contains(t, message, "Stake: 50")
	assert.Contains(t, message, "Balance: 950")
}
