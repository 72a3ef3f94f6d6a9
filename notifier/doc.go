// Package notifier delivers gatekit notifications as plain-text email
// over SMTP.
//
// The mailer satisfies the gatekit Notifier contract: every call either
// delivers one message or returns an error for the dispatcher to log.
// Message bodies embed the one-time token as a link under the configured
// base URL.
//
// # Architecture boundaries
//
// This package knows nothing about token issuance or storage; it only
// formats and sends what it is handed. Delivery retries, queueing, and
// failure isolation live in the engine's dispatcher.
//
// # What this package must NOT do
//
//   - It must not log or persist tokens.
//   - It must not block longer than the dial timeout on a dead relay.
package notifier
