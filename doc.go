// Package goAccess provides the account-security core of a multi-tenant application:
// administrator and end-user accounts, role and permission checks, TOTP two-factor
// authentication with recovery codes, failed-login lockout, tenant membership and an
// impersonation gate.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goAccess is the public surface. It exposes [Engine], [Builder], [Config], the account and
// tenant value types, and the collaborator interfaces ([Store], [Encrypter], [Clock],
// [PasswordHasher], [Impersonator], [AuditSink]). Storage backends live in store/memory,
// store/sqlstore and store/redisstore; audit buffering lives under internal/.
//
// # Consistency contract
//
// Every account mutation is a single read-modify-write against one row, committed through
// [AccountStore.SaveAccount] with optimistic versioning. A version mismatch surfaces as
// [ErrConflict]; the engine reloads and retries up to Config.Store.MaxConflictRetries times.
// Membership creation is an atomic insert-if-absent in every backend.
//
// # What this package must NOT do
//
//   - Render UI, route HTTP requests, or deliver email.
//   - Read ambient global state (app name, encryption key); everything is injected.
//   - Roll back a committed mutation because the audit sink failed.
package goAccess
