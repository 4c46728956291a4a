package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Store  StoreConfig
	Sweep  SweepConfig
	Notify NotifyConfig
}

type ServerConfig struct {
	BindAddress        string
	CORSOrigins        []string
	RateLimitPerSecond int
}

type EngineConfig struct {
	InitialBalance float64
	PayoutRatio    float64
	DefaultPairs   []string
}

type StoreConfig struct {
	DataDir string
}

type SweepConfig struct {
	IntervalSecs int
}

type NotifyConfig struct {
	Enabled           bool
	SlackWebhookURL   string
	DiscordWebhookURL string
	CooldownSecs      int
}

// defaultPairs are seeded on first user view so clients always have a
// tradable universe.
var defaultPairs = []string{
	"EUR/USD", "GBP/USD", "USD/JPY", "USD/CHF", "AUD/USD",
	"BTC/USD", "ETH/USD", "XRP/USD", "LTC/USD", "NZD/USD", "EUR/GBP",
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddress:        getEnv("BINOPT__SERVER__BIND_ADDRESS", "0.0.0.0:8080"),
			CORSOrigins:        getEnvSlice("BINOPT__SERVER__CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimitPerSecond: getEnvInt("BINOPT__SERVER__RATE_LIMIT_PER_SECOND", 50),
		},
		Engine: EngineConfig{
			InitialBalance: getEnvFloat("BINOPT__ENGINE__INITIAL_BALANCE", 1000.0),
			PayoutRatio:    getEnvFloat("BINOPT__ENGINE__PAYOUT_RATIO", 0.95),
			DefaultPairs:   getEnvSlice("BINOPT__ENGINE__DEFAULT_PAIRS", defaultPairs),
		},
		Store: StoreConfig{
			DataDir: getEnv("BINOPT__STORE__DATA_DIR", "data"),
		},
		Sweep: SweepConfig{
			IntervalSecs: getEnvInt("BINOPT__SWEEP__INTERVAL_SECS", 1),
		},
		Notify: NotifyConfig{
			Enabled:           getEnvBool("BINOPT__NOTIFY__ENABLED", false),
			SlackWebhookURL:   getEnv("BINOPT__NOTIFY__SLACK_WEBHOOK_URL", ""),
			DiscordWebhookURL: getEnv("BINOPT__NOTIFY__DISCORD_WEBHOOK_URL", ""),
			CooldownSecs:      getEnvInt("BINOPT__NOTIFY__COOLDOWN_SECS", 300),
		},
	}

	// Load TOML config file if it exists
	tomlPath := "config/default.toml"
	if _, err := os.Stat(tomlPath); err == nil {
		data, err := os.ReadFile(tomlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var tomlConfig struct {
			Server map[string]interface{} `toml:"server"`
			Engine map[string]interface{} `toml:"engine"`
			Store  map[string]interface{} `toml:"store"`
			Sweep  map[string]interface{} `toml:"sweep"`
			Notify map[string]interface{} `toml:"notify"`
		}

		if err := toml.Unmarshal(data, &tomlConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Override with TOML values
		if v, ok := tomlConfig.Server["bind_address"].(string); ok {
			cfg.Server.BindAddress = v
		}
		if v, ok := tomlConfig.Server["cors_origins"].([]interface{}); ok {
			origins := make([]string, 0, len(v))
			for _, o := range v {
				if s, ok := o.(string); ok {
					origins = append(origins, s)
				}
			}
			cfg.Server.CORSOrigins = origins
		}
		if v, ok := tomlConfig.Server["rate_limit_per_second"].(int64); ok {
			cfg.Server.RateLimitPerSecond = int(v)
		}
		if v, ok := tomlConfig.Engine["initial_balance"].(float64); ok {
			cfg.Engine.InitialBalance = v
		}
		if v, ok := tomlConfig.Engine["payout_ratio"].(float64); ok {
			cfg.Engine.PayoutRatio = v
		}
		if v, ok := tomlConfig.Engine["default_pairs"].([]interface{}); ok {
			pairs := make([]string, 0, len(v))
			for _, p := range v {
				if s, ok := p.(string); ok {
					pairs = append(pairs, s)
				}
			}
			cfg.Engine.DefaultPairs = pairs
		}
		if v, ok := tomlConfig.Store["data_dir"].(string); ok {
			cfg.Store.DataDir = v
		}
		if v, ok := tomlConfig.Sweep["interval_secs"].(int64); ok {
			cfg.Sweep.IntervalSecs = int(v)
		}
		if v, ok := tomlConfig.Notify["enabled"].(bool); ok {
			cfg.Notify.Enabled = v
		}
		if v, ok := tomlConfig.Notify["slack_webhook_url"].(string); ok {
			cfg.Notify.SlackWebhookURL = v
		}
		if v, ok := tomlConfig.Notify["discord_webhook_url"].(string); ok {
			cfg.Notify.DiscordWebhookURL = v
		}
		if v, ok := tomlConfig.Notify["cooldown_secs"].(int64); ok {
			cfg.Notify.CooldownSecs = int(v)
		}
	}

	if cfg.Engine.InitialBalance < 0 {
		return nil, fmt.Errorf("initial balance must be non-negative, got %v", cfg.Engine.InitialBalance)
	}
	if cfg.Engine.PayoutRatio <= 0 {
		return nil, fmt.Errorf("payout ratio must be positive, got %v", cfg.Engine.PayoutRatio)
	}
	if cfg.Sweep.IntervalSecs <= 0 {
		cfg.Sweep.IntervalSecs = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
