// Package gatekit provides an authentication and ephemeral-state backend:
// signed bearer-token issuance and validation, single-use password-reset
// and email-verification tokens with expiry windows, a TTL-backed
// session/cache store, and pub/sub fan-out for connected clients.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// gatekit is the public surface. It exposes [Engine], [Builder], [Config],
// and the [UserProvider] and [Notifier] integration interfaces. Subsystems
// live in their own packages — jwt (bearer tokens), password (credential
// hashing), store (TTL key-value, sessions, memoization), broadcast
// (pub/sub fan-out) — and single-use token persistence lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients or record encodings in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Reveal, in any externally observable way, whether an email address
//     belongs to a registered account.
package gatekit
