package goAccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccess/internal/audit"
)

// Engine is the access-control core. It is safe for concurrent use; all state lives in
// the Store and every account mutation is an optimistic read-modify-write.
type Engine struct {
	config       Config
	store        Store
	encrypter    Encrypter
	clock        Clock
	hasher       PasswordHasher
	impersonator Impersonator

	totp    *totpManager
	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
}

// errNoChange lets a mutator report that the record already has the requested state.
var errNoChange = errors.New("no change")

// accountMutator edits acct in place and returns the names of the fields it modified.
// Returning no fields, or errNoChange, skips the write.
type accountMutator func(acct *Account) ([]string, error)

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// loadAccount fetches ref, passing ErrNotFound through and wrapping backend failures.
func (e *Engine) loadAccount(ctx context.Context, ref AccountRef) (Account, error) {
	if !ref.Kind.Valid() || ref.ID == "" {
		return Account{}, ErrNotFound
	}
	acct, err := e.store.LoadAccount(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("failed to load account %s: %w", ref, err)
	}
	return acct, nil
}

// mutateAccount applies fn to the latest stored copy of ref and saves it conditioned on
// the loaded Version. On ErrConflict it reloads and re-applies fn, up to
// Store.MaxConflictRetries attempts. It returns the saved account and the changed field
// names; when fn changes nothing, the unmodified account and nil fields are returned.
func (e *Engine) mutateAccount(ctx context.Context, ref AccountRef, fn accountMutator) (Account, []string, error) {
	attempts := e.config.Store.MaxConflictRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Account{}, nil, err
		}

		current, err := e.loadAccount(ctx, ref)
		if err != nil {
			return Account{}, nil, err
		}

		next := current.Clone()
		changed, err := fn(&next)
		if errors.Is(err, errNoChange) {
			return current, nil, nil
		}
		if err != nil {
			return current, nil, err
		}
		if len(changed) == 0 {
			return current, nil, nil
		}

		next.UpdatedAt = e.now()
		saved, err := e.store.SaveAccount(ctx, next)
		if err == nil {
			return saved, changed, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Account{}, nil, fmt.Errorf("failed to save account %s: %w", ref, err)
		}

		e.metricInc(MetricStoreConflict)
		e.logger.DebugContext(ctx, "account save conflict",
			slog.String("account", ref.String()),
			slog.Int("attempt", attempt),
		)
	}

	e.logger.WarnContext(ctx, "account save conflict retries exhausted",
		slog.String("account", ref.String()),
		slog.Int("attempts", attempts),
	)
	return Account{}, nil, ErrConflict
}
