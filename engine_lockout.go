package goAccess

import (
	"context"
	"log/slog"
)

// RecordFailedLogin increments the account's failed-login counter. Once the counter
// reaches Lockout.Threshold the account is locked for Lockout.Duration from now; every
// further failure at or above the threshold extends the lock. It reports whether the
// account is locked after the write.
func (e *Engine) RecordFailedLogin(ctx context.Context, ref AccountRef) (bool, error) {
	now := e.now()
	var lockedNow bool

	saved, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		lockedNow = false
		wasLocked := acct.IsLocked(now)

		acct.LoginAttempts++
		changed := []string{"login_attempts"}
		if acct.LoginAttempts >= e.config.Lockout.Threshold {
			until := now.Add(e.config.Lockout.Duration)
			acct.LockedUntil = &until
			changed = append(changed, "locked_until")
			lockedNow = !wasLocked
		}
		return changed, nil
	})
	if err != nil {
		return false, err
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginFailure,
		ref:       ref,
		err:       ErrInvalidCredentials,
		changed:   changed,
	})

	if lockedNow {
		e.metricInc(MetricAccountLocked)
		e.logger.InfoContext(ctx, "account locked",
			slog.String("account", ref.String()),
			slog.Int("attempts", saved.LoginAttempts),
		)
		e.emitAudit(ctx, auditRecord{
			eventType: auditEventAccountLocked,
			ref:       ref,
			success:   true,
			changed:   []string{"locked_until"},
		})
	}

	return saved.IsLocked(now), nil
}

// IsLocked reports whether the account's lock window is still open. An expired window
// reads as unlocked without any write.
func (e *Engine) IsLocked(ctx context.Context, ref AccountRef) (bool, error) {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return false, err
	}
	return acct.IsLocked(e.now()), nil
}

// RecordSuccessfulLogin stamps LastLoginAt and LastLoginIP and zeroes the failure
// counter. LockedUntil is left as is; only ResetLoginAttempts clears it.
func (e *Engine) RecordSuccessfulLogin(ctx context.Context, ref AccountRef, ip string) error {
	_, err := e.recordSuccessfulLogin(ctx, ref, ip)
	return err
}

func (e *Engine) recordSuccessfulLogin(ctx context.Context, ref AccountRef, ip string) (Account, error) {
	now := e.now()
	saved, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		at := now
		acct.LastLoginAt = &at
		changed := []string{"last_login_at"}
		if acct.LastLoginIP != ip {
			acct.LastLoginIP = ip
			changed = append(changed, "last_login_ip")
		}
		if acct.LoginAttempts != 0 {
			acct.LoginAttempts = 0
			changed = append(changed, "login_attempts")
		}
		return changed, nil
	})
	if err != nil {
		return Account{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginSuccess,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return saved, nil
}

// ResetLoginAttempts zeroes the failure counter and clears any lock.
func (e *Engine) ResetLoginAttempts(ctx context.Context, ref AccountRef) error {
	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		var changed []string
		if acct.LoginAttempts != 0 {
			acct.LoginAttempts = 0
			changed = append(changed, "login_attempts")
		}
		if acct.LockedUntil != nil {
			acct.LockedUntil = nil
			changed = append(changed, "locked_until")
		}
		return changed, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.metricInc(MetricLoginAttemptsReset)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginAttemptsReset,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}
