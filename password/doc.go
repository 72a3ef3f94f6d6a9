// Package password implements credential hashing and verification with
// Argon2id defaults.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// A fresh random salt is drawn for every call, so hashing the same password
// twice never yields the same digest. Verification recomputes the digest
// from the parameters embedded in the stored string and compares in
// constant time.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, reuse rules) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive digests.
//   - Import any other gatekit package.
//   - Log plaintext passwords.
package password
