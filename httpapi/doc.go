// Package httpapi exposes the gatekit engine, ephemeral store, and
// broadcaster over HTTP.
//
// Routing uses net/http method patterns on a plain ServeMux. Guarded
// routes go through the bearer middleware, which validates the access
// token and injects the auth result into the request context; routes
// that require a verified account add a second check on top.
//
// Error mapping happens here and only here: engine and store sentinels
// become status codes at the boundary, and handler bodies never encode
// status decisions themselves.
//
// # Architecture boundaries
//
// This package calls the engine and the state packages; it owns no
// business rules. Anything security-relevant (credential checks, token
// consumption, enumeration behavior) is decided below this layer.
//
// # What this package must NOT do
//
//   - It must not leak whether a reset email matched an account.
//   - It must not include password hashes or raw tokens in responses,
//     other than the access token issued by POST /token.
//   - It must not bypass the engine to touch user records directly.
package httpapi
