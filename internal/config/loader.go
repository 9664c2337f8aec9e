package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CALCI_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CALCI_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "CALCI_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "CALCI_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "CALCI_KALSHI_BASE_URL")

	// ── Trading ──
	setInt(&cfg.Trading.ScanIntervalSec, "CALCI_TRADING_SCAN_INTERVAL_SEC")
	setInt(&cfg.Trading.ScanTimeoutSec, "CALCI_TRADING_SCAN_TIMEOUT_SEC")
	setInt(&cfg.Trading.YesLowThreshold, "CALCI_TRADING_YES_LOW_THRESHOLD")
	setInt(&cfg.Trading.YesHighThreshold, "CALCI_TRADING_YES_HIGH_THRESHOLD")
	setInt(&cfg.Trading.MaxPositionPct, "CALCI_TRADING_MAX_POSITION_PCT")
	setInt(&cfg.Trading.CashReservePct, "CALCI_TRADING_CASH_RESERVE_PCT")
	setInt(&cfg.Trading.MaxDailyLossPct, "CALCI_TRADING_MAX_DAILY_LOSS_PCT")
	setInt(&cfg.Trading.MaxExpiryDays, "CALCI_TRADING_MAX_EXPIRY_DAYS")

	// ── Database ──
	setStr(&cfg.Database.DSN, "CALCI_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CALCI_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CALCI_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CALCI_DATABASE_NAME")
	setStr(&cfg.Database.User, "CALCI_DATABASE_USER")
	setStr(&cfg.Database.Password, "CALCI_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CALCI_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "CALCI_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CALCI_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CALCI_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CALCI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CALCI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CALCI_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CALCI_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CALCI_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CALCI_REDIS_TLS_ENABLED")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "CALCI_EXPORT_ENABLED")
	setStr(&cfg.Export.Endpoint, "CALCI_EXPORT_ENDPOINT")
	setStr(&cfg.Export.Region, "CALCI_EXPORT_REGION")
	setStr(&cfg.Export.Bucket, "CALCI_EXPORT_BUCKET")
	setStr(&cfg.Export.AccessKey, "CALCI_EXPORT_ACCESS_KEY")
	setStr(&cfg.Export.SecretKey, "CALCI_EXPORT_SECRET_KEY")
	setBool(&cfg.Export.ForcePathStyle, "CALCI_EXPORT_FORCE_PATH_STYLE")
	setInt(&cfg.Export.IntervalHours, "CALCI_EXPORT_INTERVAL_HOURS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CALCI_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CALCI_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "CALCI_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "CALCI_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CALCI_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CALCI_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CALCI_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CALCI_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CALCI_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
