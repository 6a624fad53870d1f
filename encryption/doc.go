// Package encryption seals two-factor secrets and recovery codes at rest with
// XChaCha20-Poly1305.
//
// A [Keyring] holds one primary key used for new ciphertext and any number of retired
// keys kept for decryption, so keys can be rotated without re-encrypting every row.
// Ciphertext layout:
//
//	version(1) | key id(1) | nonce(24) | sealed payload
//
// # What this package must NOT do
//
//   - Persist or log key material.
//   - Import any other goAccess package.
package encryption
