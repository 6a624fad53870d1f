package goAccess

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrEthical07/goAccess/internal/audit"
	"github.com/MrEthical07/goAccess/password"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	store        Store
	encrypter    Encrypter
	clock        Clock
	hasher       PasswordHasher
	impersonator Impersonator
	auditSink    AuditSink
	logger       *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithEncrypter sets the cipher used for two-factor material at rest. Required.
func (b *Builder) WithEncrypter(enc Encrypter) *Builder {
	b.encrypter = enc
	return b
}

func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithPasswordHasher overrides the default argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithImpersonator enables StartImpersonation and StopImpersonation.
func (b *Builder) WithImpersonator(imp Impersonator) *Builder {
	b.impersonator = imp
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: store required", ErrEngineNotReady)
	}
	if b.encrypter == nil {
		return nil, fmt.Errorf("%w: encrypter required", ErrEngineNotReady)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock()
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		hasher = h
	}

	metrics := NewMetrics(cfg.Metrics)

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			logger.Warn("audit event dropped", slog.String("event", ev.EventType))
		},
	}, b.auditSink)

	b.built = true

	return &Engine{
		config:       cfg,
		store:        b.store,
		encrypter:    b.encrypter,
		clock:        clock,
		hasher:       hasher,
		impersonator: b.impersonator,
		totp:         newTOTPManager(cfg.TOTP),
		audit:        dispatcher,
		metrics:      metrics,
		logger:       logger,
	}, nil
}
