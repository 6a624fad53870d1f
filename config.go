package goAccess

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	TOTP     TOTPConfig
	Recovery RecoveryConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TOTPConfig controls secret generation and code verification.
//
// Issuer is the application name embedded in provisioning URIs; admin accounts get
// AdminIssuerSuffix appended so authenticator apps keep the two identities apart.
type TOTPConfig struct {
	Issuer            string `env:"ISSUER" envDefault:"goAccess"`
	AdminIssuerSuffix string `env:"ADMIN_ISSUER_SUFFIX" envDefault:" Admin"`
	Digits            int    `env:"DIGITS" envDefault:"6"`
	Period            int    `env:"PERIOD" envDefault:"30"`
	Algorithm         string `env:"ALGORITHM" envDefault:"SHA1"`
	Skew              int    `env:"SKEW" envDefault:"1"`
	SecretBytes       int    `env:"SECRET_BYTES" envDefault:"20"`
}

// RecoveryConfig controls recovery code issuance.
type RecoveryConfig struct {
	CodeCount int `env:"CODE_COUNT" envDefault:"8"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the failed-login state machine.
type LockoutConfig struct {
	Threshold int           `env:"THRESHOLD" envDefault:"5"`
	Duration  time.Duration `env:"DURATION" envDefault:"30m"`
}

// PasswordConfig holds argon2id parameters used for new hashes.
type PasswordConfig struct {
	Memory      uint32 `env:"MEMORY" envDefault:"65536"` // in KB
	Time        uint32 `env:"TIME" envDefault:"3"`
	Parallelism uint8  `env:"PARALLELISM" envDefault:"2"`
	SaltLength  uint32 `env:"SALT_LENGTH" envDefault:"16"`
	KeyLength   uint32 `env:"KEY_LENGTH" envDefault:"32"`
}

// StoreConfig controls the optimistic-concurrency retry loop.
type StoreConfig struct {
	MaxConflictRetries int `env:"MAX_CONFLICT_RETRIES" envDefault:"4"`
}

// AuditConfig controls dispatcher buffering.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED" envDefault:"false"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"1024"`
	DropIfFull bool `env:"DROP_IF_FULL" envDefault:"true"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED" envDefault:"false"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS" envDefault:"false"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 6-digit SHA1 codes on a 30 second period
// with one window of skew, 8 recovery codes, lockout after 5 failures for 30 minutes.
func DefaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:            "goAccess",
			AdminIssuerSuffix: " Admin",
			Digits:            6,
			Period:            30,
			Algorithm:         "SHA1",
			Skew:              1,
			SecretBytes:       20,
		},
		Recovery: RecoveryConfig{
			CodeCount: 8,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Store: StoreConfig{
			MaxConflictRetries: 4,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be between 0 and 3")
	}
	if _, err := hmacFunc(c.TOTP.Algorithm); err != nil {
		return err
	}
	if c.TOTP.SecretBytes < 16 {
		return errors.New("TOTP SecretBytes must be >= 16")
	}

	if c.Recovery.CodeCount <= 0 {
		return errors.New("Recovery CodeCount must be > 0")
	}

	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Store.MaxConflictRetries < 1 {
		return errors.New("Store MaxConflictRetries must be >= 1")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the ordered list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but weaken the security posture.
func (c Config) Lint() LintResult {
	var out LintResult
	if c.TOTP.Skew > 1 {
		out = append(out, LintWarning{Code: "totp_skew_wide", Message: "TOTP skew above one window widens the replay window"})
	}
	if c.TOTP.Algorithm != "SHA1" {
		out = append(out, LintWarning{Code: "totp_algorithm_compat", Message: "many authenticator apps ignore non-SHA1 algorithms"})
	}
	if c.Lockout.Threshold > 10 {
		out = append(out, LintWarning{Code: "lockout_threshold_high", Message: "lockout threshold above 10 permits long guessing runs"})
	}
	if c.Lockout.Duration < 5*time.Minute {
		out = append(out, LintWarning{Code: "lockout_duration_short", Message: "lockout shorter than 5 minutes barely slows guessing"})
	}
	if c.Recovery.CodeCount < 5 {
		out = append(out, LintWarning{Code: "recovery_codes_few", Message: "fewer than 5 recovery codes risks permanent lockout"})
	}
	if !c.Audit.Enabled {
		out = append(out, LintWarning{Code: "audit_disabled", Message: "security events are not recorded"})
	}
	return out
}
