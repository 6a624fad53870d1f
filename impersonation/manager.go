package impersonation

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrTokenInvalid is returned for malformed, expired or wrongly signed tokens.
	ErrTokenInvalid = errors.New("invalid impersonation token")
	// ErrTokenRevoked is returned when a token was already used to stop its session.
	ErrTokenRevoked = errors.New("impersonation token revoked")
)

// Config controls token issuance.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256, or an ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is required for ed25519 verification.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// Manager implements goAccess.Impersonator with signed JWTs.
type Manager struct {
	config  Config
	revoker Revoker
	now     func() time.Time
}

type actorClaim struct {
	Subject string `json:"sub"`
	Kind    string `json:"knd"`
}

type tokenClaims struct {
	Kind  string     `json:"knd"`
	Actor actorClaim `json:"act"`
	jwt.RegisteredClaims
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRevoker replaces the default in-memory revocation set.
func WithRevoker(r Revoker) Option {
	return func(m *Manager) { m.revoker = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case "", MethodHS256:
		cfg.SigningMethod = MethodHS256
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	m := &Manager{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.revoker == nil {
		m.revoker = NewMemoryRevoker()
	}
	return m, nil
}

// Begin issues a token for target carrying actor in the "act" claim.
func (m *Manager) Begin(ctx context.Context, actor, target goAccess.AccountRef) (string, error) {
	now := m.now()
	claims := tokenClaims{
		Kind:  string(target.Kind),
		Actor: actorClaim{Subject: actor.ID, Kind: string(actor.Kind)},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   target.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(m.method(), claims).SignedString(key)
}

// Verify validates token without consuming it.
func (m *Manager) Verify(ctx context.Context, token string) (goAccess.ImpersonationClaims, error) {
	c, err := m.parse(token)
	if err != nil {
		return goAccess.ImpersonationClaims{}, err
	}
	revoked, err := m.revoker.Revoked(ctx, c.ID)
	if err != nil {
		return goAccess.ImpersonationClaims{}, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return goAccess.ImpersonationClaims{}, ErrTokenRevoked
	}
	return toClaims(c), nil
}

// Restore validates token, revokes it, and returns the original actor and target.
func (m *Manager) Restore(ctx context.Context, token string) (goAccess.ImpersonationClaims, error) {
	c, err := m.parse(token)
	if err != nil {
		return goAccess.ImpersonationClaims{}, err
	}

	first, err := m.revoker.Revoke(ctx, c.ID, c.ExpiresAt.Time)
	if err != nil {
		return goAccess.ImpersonationClaims{}, fmt.Errorf("failed to revoke token: %w", err)
	}
	if !first {
		return goAccess.ImpersonationClaims{}, ErrTokenRevoked
	}
	return toClaims(c), nil
}

func (m *Manager) parse(token string) (*tokenClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || c.IssuedAt == nil || c.ID == "" || c.Subject == "" || c.Actor.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if !goAccess.AccountKind(c.Kind).Valid() || !goAccess.AccountKind(c.Actor.Kind).Valid() {
		return nil, ErrTokenInvalid
	}
	return c, nil
}

func toClaims(c *tokenClaims) goAccess.ImpersonationClaims {
	return goAccess.ImpersonationClaims{
		Actor:     goAccess.AccountRef{Kind: goAccess.AccountKind(c.Actor.Kind), ID: c.Actor.Subject},
		Target:    goAccess.AccountRef{Kind: goAccess.AccountKind(c.Kind), ID: c.Subject},
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(m.config.PrivateKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKey() (interface{}, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
