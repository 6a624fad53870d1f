// Package password implements account password hashing with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) so accounts imported from
// older systems keep working. [Argon2.NeedsUpgrade] reports true for those and for
// argon2id hashes with weaker parameters so the caller can re-hash after a successful
// login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goAccess package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
