package goAccess

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateRecoveryCodes replaces the account's recovery codes with Recovery.CodeCount
// fresh ones and returns their plaintext exactly once. Codes are 32 lower-case hex
// characters derived from random UUIDs.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, ref AccountRef) ([]string, error) {
	codes := make([]string, e.config.Recovery.CodeCount)
	for i := range codes {
		codes[i] = newRecoveryCode()
	}

	sealed, err := e.sealRecoveryCodes(codes)
	if err != nil {
		return nil, err
	}

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		acct.TwoFactorRecoveryCodes = sealed
		return []string{"two_factor_recovery_codes"}, nil
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRecoveryCodesRegenerated)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRecoveryCodesGenerated,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return codes, nil
}

// ConsumeRecoveryCode removes code from the stored set if present. Under concurrent
// presentation of the same code exactly one caller succeeds; the rest observe the code
// already removed and get ErrInvalidCode. ErrNoSecretConfigured means no codes were ever
// issued.
func (e *Engine) ConsumeRecoveryCode(ctx context.Context, ref AccountRef, code string) error {
	presented := normalizeRecoveryCode(code)

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		if len(acct.TwoFactorRecoveryCodes) == 0 {
			return nil, ErrNoSecretConfigured
		}
		codes, err := e.openRecoveryCodes(acct.TwoFactorRecoveryCodes)
		if err != nil {
			return nil, err
		}

		idx := matchRecoveryCode(codes, presented)
		if idx < 0 {
			return nil, ErrInvalidCode
		}

		remaining := append(codes[:idx:idx], codes[idx+1:]...)
		sealed, err := e.sealRecoveryCodes(remaining)
		if err != nil {
			return nil, err
		}
		acct.TwoFactorRecoveryCodes = sealed
		return []string{"two_factor_recovery_codes"}, nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			e.metricInc(MetricRecoveryCodeFailed)
			e.emitAudit(ctx, auditRecord{
				eventType: auditEventRecoveryCodeFailed,
				ref:       ref,
				err:       err,
			})
		}
		return err
	}

	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRecoveryCodeUsed,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}

// RecoveryCodesRemaining returns how many unused recovery codes the account holds.
func (e *Engine) RecoveryCodesRemaining(ctx context.Context, ref AccountRef) (int, error) {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return 0, err
	}
	if len(acct.TwoFactorRecoveryCodes) == 0 {
		return 0, nil
	}
	codes, err := e.openRecoveryCodes(acct.TwoFactorRecoveryCodes)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}

func newRecoveryCode() string {
	return normalizeRecoveryCode(uuid.NewString())
}

func normalizeRecoveryCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.NewReplacer("-", "", "_", "", " ", "").Replace(code)
	return strings.ToLower(code)
}

// matchRecoveryCode scans every stored code so the comparison time does not depend on
// which position matched.
func matchRecoveryCode(codes []string, presented string) int {
	found := -1
	for i, c := range codes {
		if subtle.ConstantTimeCompare([]byte(c), []byte(presented)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}

func (e *Engine) sealRecoveryCodes(codes []string) ([]byte, error) {
	raw, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recovery codes: %w", err)
	}
	sealed, err := e.encrypter.Encrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt recovery codes: %w", err)
	}
	return sealed, nil
}

func (e *Engine) openRecoveryCodes(sealed []byte) ([]string, error) {
	raw, err := e.encrypter.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recovery codes: %w", err)
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, fmt.Errorf("failed to decode recovery codes: %w", err)
	}
	return codes, nil
}
