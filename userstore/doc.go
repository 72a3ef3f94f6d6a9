// Package userstore provides a Redis-backed implementation of the
// gatekit UserProvider interface.
//
// Accounts live under user:<id> as JSON documents, with user:by-name:<u>
// and user:by-email:<e> index keys pointing back at the id and a users
// membership set for enumeration by operational tooling. Index keys are
// claimed inside WATCH transactions so concurrent registrations of the
// same username or email cannot both succeed.
//
// # Architecture boundaries
//
// This package depends on the root gatekit package for the record and
// error types of the provider contract and on go-redis for storage.
// It performs no password hashing, token work, or policy checks; those
// belong to the engine.
//
// # What this package must NOT do
//
//   - It must not interpret PasswordHash beyond storing it.
//   - It must not flip Verified back to false except when UpdateProfile
//     changes the email address.
//   - It must not delete index keys for an account that still exists.
package userstore
