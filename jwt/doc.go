// Package jwt manages bearer-token issuance and verification with a single
// symmetric signing key and strict validation semantics.
//
// Tokens are self-contained: validity is computed from the token's own
// claims plus the signing key, never looked up in a store. The signing
// algorithm is fixed per deployment at construction time and pinned during
// parsing, so a token cannot negotiate a weaker algorithm for itself.
//
// # What this package must NOT do
//
//   - Access Redis or any other store (verification is stateless).
//   - Accept a token signed with any algorithm other than the configured one.
//   - Import any other gatekit package.
package jwt
