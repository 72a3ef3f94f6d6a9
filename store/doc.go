// Package store provides a Redis-backed key-value store with per-key
// time-to-live semantics, plus the two derived usages built on it:
// session persistence and memoized computation results.
//
// # Expiry model
//
// Every entry carries an absolute TTL set at write time. Redis evicts on
// its own schedule; readers treat an expired key exactly like one that was
// never written. There is no sliding refresh on read — only an explicit
// Put or Update refreshes a TTL.
//
// # Conditional updates
//
// [Store.Update] performs its read-modify-write inside a WATCH/MULTI
// optimistic transaction with retry on contention, so a concurrent writer
// to the same key forces a re-read rather than a lost update.
//
// # What this package must NOT do
//
//   - Interpret values beyond the session and memo helpers' own payloads.
//   - Import the root gatekit package (no upward imports).
package store
