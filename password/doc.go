// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) from earlier deployments still verify.
// [Hasher.NeedsUpgrade] reports true for them, and for argon2 hashes made with
// weaker parameters, so the caller can rehash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Enforce account policy beyond the minimum length.
//   - Log plaintext passwords.
package password
