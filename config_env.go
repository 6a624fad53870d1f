package goAccess

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type envConfig struct {
	TOTP     TOTPConfig     `envPrefix:"TOTP_"`
	Recovery RecoveryConfig `envPrefix:"RECOVERY_"`
	Lockout  LockoutConfig  `envPrefix:"LOCKOUT_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Audit    AuditConfig    `envPrefix:"AUDIT_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
}

// LoadConfigFromEnv builds a Config from GOACCESS_* environment variables. Files named in
// dotenvFiles are loaded first without overriding variables already set; missing files are
// skipped. Unset variables fall back to [DefaultConfig] values.
func LoadConfigFromEnv(dotenvFiles ...string) (Config, error) {
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var raw envConfig
	if err := env.ParseWithOptions(&raw, env.Options{Prefix: "GOACCESS_"}); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Config(raw)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
