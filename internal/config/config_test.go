package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validConfig returns Defaults() with the required secrets filled in.
func validConfig() Config {
	cfg := Defaults()
	cfg.Kalshi.ApiKey = "key-id"
	cfg.Kalshi.RsaPrivateKeyPath = "/tmp/key.pem"
	return cfg
}

func TestDefaultsValidateWithCredentials(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with credentials must validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Kalshi.ApiKey = ""
	cfg.Trading.YesLowThreshold = 0
	cfg.Trading.MaxPositionPct = 150
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"api_key", "yes_low_threshold", "max_position_pct", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Trading.YesLowThreshold = 85
	cfg.Trading.YesHighThreshold = 10

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "below yes_high_threshold") {
		t.Fatalf("expected threshold ordering error, got %v", err)
	}
}

func TestValidateExportOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Export.Enabled = false
	cfg.Export.Bucket = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled export must not be validated: %v", err)
	}

	cfg.Export.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled export with empty bucket must fail validation")
	}
}

func TestValidateTelegramPairing(t *testing.T) {
	cfg := validConfig()
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.TelegramChatID = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "telegram") {
		t.Fatalf("expected telegram pairing error, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[kalshi]
api_key = "file-key"

[trading]
scan_interval_sec = 60
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Kalshi.ApiKey != "file-key" {
		t.Errorf("api_key = %q, want file-key", cfg.Kalshi.ApiKey)
	}
	if cfg.Trading.ScanIntervalSec != 60 {
		t.Errorf("scan_interval_sec = %d, want 60", cfg.Trading.ScanIntervalSec)
	}
	// Untouched fields keep their defaults.
	if cfg.Trading.YesLowThreshold != 10 {
		t.Errorf("yes_low_threshold = %d, want default 10", cfg.Trading.YesLowThreshold)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[kalshi]\napi_key = \"file-key\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CALCI_KALSHI_API_KEY", "env-key")
	t.Setenv("CALCI_TRADING_MAX_DAILY_LOSS_PCT", "25")
	t.Setenv("CALCI_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kalshi.ApiKey != "env-key" {
		t.Errorf("api_key = %q, want env override", cfg.Kalshi.ApiKey)
	}
	if cfg.Trading.MaxDailyLossPct != 25 {
		t.Errorf("max_daily_loss_pct = %d, want 25", cfg.Trading.MaxDailyLossPct)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("cors_origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
