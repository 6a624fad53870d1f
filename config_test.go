package goAccess

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "totp 8 digits valid",
			mutate:    func(c *Config) { c.TOTP.Digits = 8 },
			wantValid: true,
		},
		{
			name:      "totp 5 digits invalid",
			mutate:    func(c *Config) { c.TOTP.Digits = 5 },
			wantValid: false,
		},
		{
			name:      "totp issuer with colon invalid",
			mutate:    func(c *Config) { c.TOTP.Issuer = "acme:prod" },
			wantValid: false,
		},
		{
			name:      "totp issuer blank invalid",
			mutate:    func(c *Config) { c.TOTP.Issuer = "  " },
			wantValid: false,
		},
		{
			name:      "totp sha256 valid",
			mutate:    func(c *Config) { c.TOTP.Algorithm = "sha256" },
			wantValid: true,
		},
		{
			name:      "totp md5 invalid",
			mutate:    func(c *Config) { c.TOTP.Algorithm = "MD5" },
			wantValid: false,
		},
		{
			name:      "totp skew too wide invalid",
			mutate:    func(c *Config) { c.TOTP.Skew = 4 },
			wantValid: false,
		},
		{
			name:      "totp short secret invalid",
			mutate:    func(c *Config) { c.TOTP.SecretBytes = 10 },
			wantValid: false,
		},
		{
			name:      "recovery zero codes invalid",
			mutate:    func(c *Config) { c.Recovery.CodeCount = 0 },
			wantValid: false,
		},
		{
			name:      "lockout zero threshold invalid",
			mutate:    func(c *Config) { c.Lockout.Threshold = 0 },
			wantValid: false,
		},
		{
			name:      "lockout zero duration invalid",
			mutate:    func(c *Config) { c.Lockout.Duration = 0 },
			wantValid: false,
		},
		{
			name:      "password low memory invalid",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name:      "store zero retries invalid",
			mutate:    func(c *Config) { c.Store.MaxConflictRetries = 0 },
			wantValid: false,
		},
		{
			name: "audit enabled zero buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "latency histograms without metrics invalid",
			mutate:    func(c *Config) { c.Metrics.EnableLatencyHistograms = true },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GOACCESS_TOTP_ISSUER", "Acme")
	t.Setenv("GOACCESS_LOCKOUT_THRESHOLD", "3")
	t.Setenv("GOACCESS_LOCKOUT_DURATION", "15m")
	t.Setenv("GOACCESS_METRICS_ENABLED", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.TOTP.Issuer != "Acme" || cfg.Lockout.Threshold != 3 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics not enabled")
	}
	// untouched values keep their defaults
	if cfg.TOTP.Digits != 6 || cfg.Recovery.CodeCount != 8 {
		t.Fatalf("defaults lost: digits=%d codes=%d", cfg.TOTP.Digits, cfg.Recovery.CodeCount)
	}
}

func TestLoadConfigFromEnvDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GOACCESS_RECOVERY_CODE_COUNT=10\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("GOACCESS_RECOVERY_CODE_COUNT", "")
	os.Unsetenv("GOACCESS_RECOVERY_CODE_COUNT")

	cfg, err := LoadConfigFromEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Recovery.CodeCount != 10 {
		t.Fatalf("CodeCount = %d, want 10", cfg.Recovery.CodeCount)
	}
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("GOACCESS_TOTP_DIGITS", "4")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	t.Setenv("GOACCESS_TOTP_DIGITS", "six")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
