package goAccess

import "context"

type clientIPContextKey struct{}
type actorContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it on audit
// events and, through Authenticate, as LastLoginIP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithActor attaches the principal performing the operation. Audit events carry its ID
// so changes made by one admin to another account can be attributed.
func WithActor(ctx context.Context, actor AccountRef) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func actorFromContext(ctx context.Context) (AccountRef, bool) {
	if ctx == nil {
		return AccountRef{}, false
	}

	actor, ok := ctx.Value(actorContextKey{}).(AccountRef)
	return actor, ok && actor.ID != ""
}
