package goAccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccess/password"
)

// AuthenticateRequest carries one login attempt. At most one of TwoFactorCode and
// RecoveryCode is consulted, TwoFactorCode first.
type AuthenticateRequest struct {
	Kind          AccountKind
	Email         string
	Password      string
	TwoFactorCode string
	RecoveryCode  string
	IP            string
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// The sequence is: lookup by email, lock check, lifecycle check, password, second factor,
// then RecordSuccessfulLogin. A wrong password or second factor counts as a failed login and
// may lock the account. Unknown emails and wrong passwords both return ErrInvalidCredentials.
// A locked account returns ErrAccountLocked before the password is checked.
func (e *Engine) Authenticate(ctx context.Context, req AuthenticateRequest) (Account, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}
	if req.IP == "" {
		req.IP = clientIPFromContext(ctx)
	}

	acct, err := e.store.FindAccountByEmail(ctx, req.Kind, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("failed to find account: %w", err)
	}
	ref := acct.Ref()

	if acct.IsLocked(e.now()) {
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, ref: ref, err: ErrAccountLocked})
		return Account{}, ErrAccountLocked
	}
	if !acct.Active() {
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, ref: ref, err: ErrAccountInactive})
		return Account{}, ErrAccountInactive
	}

	ok, err := e.hasher.Verify(req.Password, acct.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return Account{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		if _, err := e.RecordFailedLogin(ctx, ref); err != nil {
			return Account{}, err
		}
		return Account{}, ErrInvalidCredentials
	}

	if acct.HasTwoFactorEnabled() {
		if err := e.secondFactor(ctx, acct, req); err != nil {
			return Account{}, err
		}
	}

	return e.recordSuccessfulLogin(ctx, ref, req.IP)
}

func (e *Engine) secondFactor(ctx context.Context, acct Account, req AuthenticateRequest) error {
	var err error
	switch {
	case req.TwoFactorCode != "":
		err = e.verifyTwoFactor(ctx, acct, req.TwoFactorCode)
	case req.RecoveryCode != "":
		err = e.ConsumeRecoveryCode(ctx, acct.Ref(), req.RecoveryCode)
	default:
		e.metricInc(MetricTwoFactorRequired)
		return ErrTwoFactorRequired
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrNoSecretConfigured) {
		if _, recErr := e.RecordFailedLogin(ctx, acct.Ref()); recErr != nil {
			return errors.Join(err, recErr)
		}
	}
	return err
}
