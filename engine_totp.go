package goAccess

import (
	"context"
	"fmt"
)

// TwoFactorSetup is the one-time provisioning payload shown to the account holder.
type TwoFactorSetup struct {
	SecretBase32 string
	URI          string
}

// GenerateTwoFactorSecret describes the generatetwofactorsecret operation and its observable behavior.
//
// A fresh random secret is encrypted and stored on the account; the plaintext base32 form is
// returned exactly once. An existing secret is replaced and the enabled flag is left as is.
func (e *Engine) GenerateTwoFactorSecret(ctx context.Context, ref AccountRef) (string, error) {
	secret, err := e.totp.generateSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	sealed, err := e.encrypter.Encrypt([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt totp secret: %w", err)
	}

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		acct.TwoFactorSecret = sealed
		return []string{"two_factor_secret"}, nil
	})
	if err != nil {
		return "", err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTwoFactorSecretIssued,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return secret, nil
}

// ProvisionTwoFactor generates a secret and returns it with its provisioning URI.
func (e *Engine) ProvisionTwoFactor(ctx context.Context, ref AccountRef) (*TwoFactorSetup, error) {
	secret, err := e.GenerateTwoFactorSecret(ctx, ref)
	if err != nil {
		return nil, err
	}
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return nil, err
	}
	issuer := e.totp.issuerFor(acct.Kind)
	return &TwoFactorSetup{
		SecretBase32: secret,
		URI:          e.totp.provisionURI(issuer, acct.Email, secret),
	}, nil
}

// TwoFactorProvisioningURI builds the otpauth:// URI for the stored secret. Admin accounts
// get the admin issuer suffix. Returns ErrNoSecretConfigured when no secret exists.
func (e *Engine) TwoFactorProvisioningURI(ctx context.Context, ref AccountRef) (string, error) {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return "", err
	}
	secret, err := e.openSecret(acct)
	if err != nil {
		return "", err
	}
	return e.totp.provisionURI(e.totp.issuerFor(acct.Kind), acct.Email, secret), nil
}

// VerifyTwoFactorCode checks code against the stored secret at the current time, accepting
// the configured number of adjacent windows. It returns ErrNoSecretConfigured when no
// secret exists and ErrInvalidCode on mismatch. It never writes.
func (e *Engine) VerifyTwoFactorCode(ctx context.Context, ref AccountRef, code string) error {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return err
	}
	return e.verifyTwoFactor(ctx, acct, code)
}

func (e *Engine) verifyTwoFactor(ctx context.Context, acct Account, code string) error {
	secret, err := e.openSecret(acct)
	if err != nil {
		return err
	}

	ok, err := e.totp.verify(secret, code, e.now())
	if err != nil {
		return fmt.Errorf("failed to verify totp code: %w", err)
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditRecord{
			eventType: auditEventTwoFactorFailure,
			ref:       acct.Ref(),
			err:       ErrInvalidCode,
		})
		return ErrInvalidCode
	}

	e.metricInc(MetricTwoFactorSuccess)
	return nil
}

// EnableTwoFactor confirms the pending secret with a current code and turns two-factor on.
// Enabling an already enabled account only verifies the code.
func (e *Engine) EnableTwoFactor(ctx context.Context, ref AccountRef, code string) error {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return err
	}
	if err := e.verifyTwoFactor(ctx, acct, code); err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		if len(acct.TwoFactorSecret) == 0 {
			// disabled concurrently
			return nil, ErrNoSecretConfigured
		}
		if acct.TwoFactorEnabled {
			return nil, errNoChange
		}
		acct.TwoFactorEnabled = true
		return []string{"two_factor_enabled"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTwoFactorEnabled,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}

// DisableTwoFactor turns two-factor off and erases the secret and recovery codes.
func (e *Engine) DisableTwoFactor(ctx context.Context, ref AccountRef) error {
	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		var changed []string
		if acct.TwoFactorEnabled {
			acct.TwoFactorEnabled = false
			changed = append(changed, "two_factor_enabled")
		}
		if acct.TwoFactorSecret != nil {
			acct.TwoFactorSecret = nil
			changed = append(changed, "two_factor_secret")
		}
		if acct.TwoFactorRecoveryCodes != nil {
			acct.TwoFactorRecoveryCodes = nil
			changed = append(changed, "two_factor_recovery_codes")
		}
		return changed, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTwoFactorDisabled,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}

func (e *Engine) openSecret(acct Account) (string, error) {
	if len(acct.TwoFactorSecret) == 0 {
		return "", ErrNoSecretConfigured
	}
	plain, err := e.encrypter.Decrypt(acct.TwoFactorSecret)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt totp secret: %w", err)
	}
	return string(plain), nil
}
