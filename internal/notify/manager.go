package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
)

// Manager pushes settlement outcomes to webhook channels, with a per-user
// cooldown so a burst of settlements does not flood the channel.
type Manager struct {
	config        config.NotifyConfig
	settlements   <-chan engine.Settlement
	slackClient   *SlackClient
	discordClient *DiscordClient
	cooldown      map[string]time.Time
	mu            sync.RWMutex
}

func NewManager(cfg config.NotifyConfig, settlements <-chan engine.Settlement) *Manager {
	var slackClient *SlackClient
	var discordClient *DiscordClient

	if cfg.SlackWebhookURL != "" {
		slackClient = NewSlackClient(cfg.SlackWebhookURL)
	}
	if cfg.DiscordWebhookURL != "" {
		discordClient = NewDiscordClient(cfg.DiscordWebhookURL)
	}

	return &Manager{
		config:        cfg,
		settlements:   settlements,
		slackClient:   slackClient,
		discordClient: discordClient,
		cooldown:      make(map[string]time.Time),
	}
}

func (m *Manager) Run(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case settlement := <-m.settlements:
			m.handleSettlement(settlement)
		}
	}
}

func (m *Manager) handleSettlement(settlement engine.Settlement) {
	if m.inCooldown(settlement.Username) {
		return
	}

	m.mu.Lock()
	m.cooldown[settlement.Username] = time.Now()
	m.mu.Unlock()

	message := formatSettlementMessage(settlement)

	if m.slackClient != nil {
		go m.slackClient.Send(message)
	}
	if m.discordClient != nil {
		go m.discordClient.Send(message)
	}
}

func (m *Manager) inCooldown(username string) bool {
	m.mu.RLock()
	lastSent, seen := m.cooldown[username]
	m.mu.RUnlock()

	if !seen {
		return false
	}
	return time.Since(lastSent) < time.Duration(m.config.CooldownSecs)*time.Second
}

func formatSettlementMessage(s engine.Settlement) string {
	return fmt.Sprintf("**Trade settled: %s**\n"+
		"User: %s\n"+
		"Pair: %s (%s)\n"+
		"Stake: %s\n"+
		"Entry: %.6f → Exit: %.6f\n"+
		"Balance: %s",
		s.Result,
		s.Username,
		s.Pair, s.Side,
		s.Amount.String(),
		s.EntryPrice, s.ExitPrice,
		s.Balance.String(),
	)
}
