package goAccess

import (
	"context"
	"fmt"
)

// StartImpersonation lets actor assume target's identity. The actor must be an active
// super_admin of either kind, the target must be active and must not be a super_admin,
// and nobody may impersonate themselves. The session swap itself is delegated to the
// configured Impersonator, whose token is returned.
func (e *Engine) StartImpersonation(ctx context.Context, actorRef, targetRef AccountRef) (string, error) {
	if actorRef == targetRef {
		return "", ErrSelfImpersonation
	}
	if e.impersonator == nil {
		return "", fmt.Errorf("%w: impersonator not configured", ErrEngineNotReady)
	}

	actor, err := e.loadAccount(ctx, actorRef)
	if err != nil {
		return "", err
	}
	target, err := e.loadAccount(ctx, targetRef)
	if err != nil {
		return "", err
	}

	if err := e.authorizeImpersonation(actor, target); err != nil {
		e.metricInc(MetricImpersonationDenied)
		e.emitAudit(ctx, auditRecord{
			eventType: auditEventImpersonationDenied,
			ref:       targetRef,
			err:       err,
			metadata:  map[string]string{"actor": actorRef.String()},
		})
		return "", err
	}

	token, err := e.impersonator.Begin(ctx, actorRef, targetRef)
	if err != nil {
		return "", fmt.Errorf("failed to begin impersonation: %w", err)
	}

	e.metricInc(MetricImpersonationStarted)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventImpersonationStarted,
		ref:       targetRef,
		success:   true,
		metadata:  map[string]string{"actor": actorRef.String()},
	})
	return token, nil
}

// CheckImpersonation runs the same gate as StartImpersonation without issuing a token,
// emitting audit events or touching metrics. A nil error means the request would be allowed.
func (e *Engine) CheckImpersonation(ctx context.Context, actorRef, targetRef AccountRef) error {
	if actorRef == targetRef {
		return ErrSelfImpersonation
	}

	actor, err := e.loadAccount(ctx, actorRef)
	if err != nil {
		return err
	}
	target, err := e.loadAccount(ctx, targetRef)
	if err != nil {
		return err
	}
	return e.authorizeImpersonation(actor, target)
}

func (e *Engine) authorizeImpersonation(actor, target Account) error {
	if !actor.Active() || !CanImpersonate(actor) {
		return ErrPermissionDenied
	}
	if !target.Active() {
		return ErrAccountInactive
	}
	if !CanBeImpersonated(target) {
		return ErrPermissionDenied
	}
	return nil
}

// StopImpersonation ends the session identified by token and returns the original actor
// and target so the caller can restore the actor's identity.
func (e *Engine) StopImpersonation(ctx context.Context, token string) (ImpersonationClaims, error) {
	if e.impersonator == nil {
		return ImpersonationClaims{}, fmt.Errorf("%w: impersonator not configured", ErrEngineNotReady)
	}

	claims, err := e.impersonator.Restore(ctx, token)
	if err != nil {
		return ImpersonationClaims{}, err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventImpersonationStopped,
		ref:       claims.Target,
		success:   true,
		metadata:  map[string]string{"actor": claims.Actor.String()},
	})
	return claims, nil
}
