// Package stores provides the Redis-backed, short-lived token store shared
// by the password-reset and email-verification flows.
//
// # Design
//
// Each token is an opaque 256-bit random value handed to the user. Redis
// holds a versioned, binary-encoded record under the SHA-256 of the token,
// so the store never persists the redeemable secret itself. Consumption
// uses a WATCH/MULTI optimistic transaction with retry on contention:
// validity check and the consumed mark commit atomically, so exactly one
// redemption of a given token can ever succeed. Consumed records are kept
// as tombstones until natural expiry, which lets a replayed token fail with
// a distinct error instead of a generic not-found.
//
// # What this package must NOT do
//
//   - Import the root gatekit package or any sibling internal package.
//   - Log or expose plaintext tokens.
//   - Decide what a consumed token authorizes — that belongs to the Engine.
package stores
