// Package config defines the top-level configuration for the trading bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CALCI_* environment variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Trading  TradingConfig  `toml:"trading"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Export   ExportConfig   `toml:"export"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// KalshiConfig holds exchange API credentials and endpoint.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
}

// TradingConfig holds the numeric strategy and risk parameters. All price
// values are integer cents, all percentages are whole percents.
type TradingConfig struct {
	ScanIntervalSec int `toml:"scan_interval_sec"`
	ScanTimeoutSec  int `toml:"scan_timeout_sec"`
	YesLowThreshold int `toml:"yes_low_threshold"`  // longshot ceiling, cents
	YesHighThreshold int `toml:"yes_high_threshold"` // favorite floor, cents
	MaxPositionPct  int `toml:"max_position_pct"`
	CashReservePct  int `toml:"cash_reserve_pct"`
	MaxDailyLossPct int `toml:"max_daily_loss_pct"`
	MaxExpiryDays   int `toml:"max_expiry_days"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ExportConfig holds S3-compatible object storage parameters for the nightly
// trade-history export.
type ExportConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	IntervalHours  int    `toml:"interval_hours"`
}

// ServerConfig holds dashboard HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the stock trading parameters and
// local development endpoints.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:           "https://demo-api.kalshi.co/trade-api/v2",
			RsaPrivateKeyPath: "./bot.txt",
		},
		Trading: TradingConfig{
			ScanIntervalSec:  300,
			ScanTimeoutSec:   120,
			YesLowThreshold:  10,
			YesHighThreshold: 85,
			MaxPositionPct:   20,
			CashReservePct:   20,
			MaxDailyLossPct:  15,
			MaxExpiryDays:    7,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "calcitrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Export: ExportConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "calcitrade-exports",
			ForcePathStyle: true,
			IntervalHours:  24,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"orders_placed", "trade_settled", "error"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi
	if c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key must not be empty")
	}
	if c.Kalshi.RsaPrivateKeyPath == "" {
		errs = append(errs, "kalshi: rsa_private_key_path must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	// Trading
	t := c.Trading
	if t.ScanIntervalSec < 1 {
		errs = append(errs, "trading: scan_interval_sec must be >= 1")
	}
	if t.ScanTimeoutSec < 1 {
		errs = append(errs, "trading: scan_timeout_sec must be >= 1")
	}
	if t.YesLowThreshold < 1 || t.YesLowThreshold > 99 {
		errs = append(errs, fmt.Sprintf("trading: yes_low_threshold must be 1-99 cents, got %d", t.YesLowThreshold))
	}
	if t.YesHighThreshold < 1 || t.YesHighThreshold > 99 {
		errs = append(errs, fmt.Sprintf("trading: yes_high_threshold must be 1-99 cents, got %d", t.YesHighThreshold))
	}
	if t.YesLowThreshold >= t.YesHighThreshold {
		errs = append(errs, "trading: yes_low_threshold must be below yes_high_threshold")
	}
	for _, p := range []struct {
		name string
		val  int
	}{
		{"max_position_pct", t.MaxPositionPct},
		{"cash_reserve_pct", t.CashReservePct},
		{"max_daily_loss_pct", t.MaxDailyLossPct},
	} {
		if p.val < 0 || p.val > 100 {
			errs = append(errs, fmt.Sprintf("trading: %s must be 0-100, got %d", p.name, p.val))
		}
	}
	if t.MaxExpiryDays < 1 {
		errs = append(errs, "trading: max_expiry_days must be >= 1")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Export
	if c.Export.Enabled {
		if c.Export.Endpoint == "" {
			errs = append(errs, "export: endpoint must not be empty when enabled")
		}
		if c.Export.Bucket == "" {
			errs = append(errs, "export: bucket must not be empty when enabled")
		}
		if c.Export.IntervalHours < 1 {
			errs = append(errs, "export: interval_hours must be >= 1 when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — chat id and token must be set together.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
