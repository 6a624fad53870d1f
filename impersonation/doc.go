// Package impersonation issues signed impersonation tokens for the engine's
// Impersonator collaborator.
//
// A token names the impersonated account in "sub"/"knd" and the real actor in the
// RFC 8693 "act" claim. Tokens are short-lived and single-use on the way out: Restore
// records the token id in a [Revoker] so a stopped session cannot be resumed.
//
// # What this package must NOT do
//
//   - Decide whether impersonation is allowed; the Engine's gate does that first.
//   - Store session state beyond revoked token ids.
package impersonation
