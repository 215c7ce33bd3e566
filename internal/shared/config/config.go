package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BotConfig holds the Telegram settings used for inbound messages and notifications.
type BotConfig struct {
	Token        string
	Mode         string // "polling", "webhook" or "disabled"
	NotifyChatID int64
	Webhook      WebhookConfig
	Polling      PollingConfig
}

// WebhookConfig holds settings for webhook mode.
type WebhookConfig struct {
	URL        string
	ListenPort int
}

// PollingConfig holds settings for polling mode. The worker pool is shared by both modes.
type PollingConfig struct {
	WorkerPoolSize int
}

// PostgresConfig holds the optional step journal database.
type PostgresConfig struct {
	URL string
}

// RedisConfig holds the optional idempotency store.
type RedisConfig struct {
	URL string
}

// RulesConfig holds the business thresholds used by the orchestration core.
type RulesConfig struct {
	RiskStakeThreshold    decimal.Decimal
	HighValueBetThreshold decimal.Decimal
	BonusMinDeposit       decimal.Decimal
	BonusRate             decimal.Decimal
	PaymentRiskLimit      decimal.Decimal
	BalanceAlertThreshold decimal.Decimal
}

// CleanupConfig controls the age-based eviction of process and workflow registries.
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Config holds all configuration for the application.
type Config struct {
	AppEnv         string
	HTTPListenAddr string
	Postgres       PostgresConfig
	Redis          RedisConfig
	Bot            BotConfig
	Rules          RulesConfig
	Cleanup        CleanupConfig
}

// IsProduction reports whether testing-only facilities must be disabled.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var envBindings = map[string]string{
	"app.env":                        "APP_ENV",
	"http.listen_addr":               "HTTP_LISTEN_ADDR",
	"postgres.url":                   "POSTGRES_URL",
	"redis.url":                      "REDIS_URL",
	"bot.token":                      "BOT_TOKEN",
	"bot.mode":                       "BOT_MODE",
	"bot.notify_chat_id":             "BOT_NOTIFY_CHAT_ID",
	"bot.webhook.url":                "BOT_WEBHOOK_URL",
	"bot.webhook.port":               "BOT_WEBHOOK_PORT",
	"bot.polling.workers":            "BOT_WORKERS",
	"rules.risk_stake_threshold":     "RISK_STAKE_THRESHOLD",
	"rules.high_value_bet_threshold": "HIGH_VALUE_BET_THRESHOLD",
	"rules.bonus_min_deposit":        "BONUS_MIN_DEPOSIT",
	"rules.bonus_rate":               "BONUS_RATE",
	"rules.payment_risk_limit":       "PAYMENT_RISK_LIMIT",
	"rules.balance_alert_threshold":  "BALANCE_ALERT_THRESHOLD",
	"cleanup.interval":               "CLEANUP_INTERVAL",
	"cleanup.max_age":                "CLEANUP_MAX_AGE",
}

// Load loads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	// 1. Load .env file into the process environment.
	// A missing file is fine; OS-set env vars are used instead.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// 2. Explicitly bind viper keys to env var names
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	// 3. Set defaults
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.listen_addr", ":8080")
	v.SetDefault("bot.mode", "disabled")
	v.SetDefault("bot.webhook.port", 8443)
	v.SetDefault("bot.polling.workers", 4)
	v.SetDefault("rules.risk_stake_threshold", "5000")
	v.SetDefault("rules.high_value_bet_threshold", "10000")
	v.SetDefault("rules.bonus_min_deposit", "100")
	v.SetDefault("rules.bonus_rate", "0.10")
	v.SetDefault("rules.payment_risk_limit", "50000")
	v.SetDefault("rules.balance_alert_threshold", "100000")
	v.SetDefault("cleanup.interval", "5m")
	v.SetDefault("cleanup.max_age", "60m")

	// 4. Get values from viper
	cfg := Config{
		AppEnv:         v.GetString("app.env"),
		HTTPListenAddr: v.GetString("http.listen_addr"),
		Postgres:       PostgresConfig{URL: v.GetString("postgres.url")},
		Redis:          RedisConfig{URL: v.GetString("redis.url")},
		Bot: BotConfig{
			Token:        v.GetString("bot.token"),
			Mode:         v.GetString("bot.mode"),
			NotifyChatID: v.GetInt64("bot.notify_chat_id"),
			Webhook: WebhookConfig{
				URL:        v.GetString("bot.webhook.url"),
				ListenPort: v.GetInt("bot.webhook.port"),
			},
			Polling: PollingConfig{WorkerPoolSize: v.GetInt("bot.polling.workers")},
		},
		Cleanup: CleanupConfig{
			Interval: v.GetDuration("cleanup.interval"),
			MaxAge:   v.GetDuration("cleanup.max_age"),
		},
	}

	rules, err := loadRules(v)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules

	// 5. Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadRules(v *viper.Viper) (RulesConfig, error) {
	var rules RulesConfig
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"rules.risk_stake_threshold", &rules.RiskStakeThreshold},
		{"rules.high_value_bet_threshold", &rules.HighValueBetThreshold},
		{"rules.bonus_min_deposit", &rules.BonusMinDeposit},
		{"rules.bonus_rate", &rules.BonusRate},
		{"rules.payment_risk_limit", &rules.PaymentRiskLimit},
		{"rules.balance_alert_threshold", &rules.BalanceAlertThreshold},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(v.GetString(f.key))
		if err != nil {
			return rules, fmt.Errorf("%s must be a decimal number: %w", f.key, err)
		}
		*f.dst = d
	}
	return rules, nil
}

func (c *Config) validate() error {
	switch c.Bot.Mode {
	case "disabled":
	case "polling", "webhook":
		if c.Bot.Token == "" {
			return fmt.Errorf("BOT_TOKEN is required when BOT_MODE=%s", c.Bot.Mode)
		}
		if c.Bot.Mode == "webhook" && c.Bot.Webhook.URL == "" {
			return fmt.Errorf("BOT_WEBHOOK_URL is required when BOT_MODE=webhook")
		}
	default:
		return fmt.Errorf("unknown BOT_MODE %q (expected polling, webhook or disabled)", c.Bot.Mode)
	}

	if c.Bot.Polling.WorkerPoolSize < 1 {
		return fmt.Errorf("BOT_WORKERS must be at least 1, got %d", c.Bot.Polling.WorkerPoolSize)
	}
	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.Cleanup.Interval)
	}
	if c.Cleanup.MaxAge < 0 {
		return fmt.Errorf("CLEANUP_MAX_AGE must not be negative, got %s", c.Cleanup.MaxAge)
	}
	return nil
}
