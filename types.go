package gatekit

import (
	"context"
	"time"
)

// UserRecord is the account record exchanged with the external user
// repository. The engine itself reads and writes only PasswordHash and
// Verified; everything else passes through untouched.
type UserRecord struct {
	UserID       string
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Verified     bool
	Disabled     bool
	CreatedAt    time.Time
}

// CreateUserInput carries the fields needed to register a new account.
type CreateUserInput struct {
	Username     string
	FullName     string
	Email        string
	PasswordHash string
}

// ProfileUpdate carries the mutable profile fields for [Engine.UpdateProfile].
// Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

// UserProvider is the interface callers implement to integrate gatekit
// with their user repository. Lookups return [ErrUserNotFound] for unknown
// identities and CreateUser returns [ErrAccountExists] on a duplicate
// username or email.
//
// MarkVerified is one-way: implementations must never flip a verified
// account back to unverified except through [UserProvider.UpdateProfile]
// when the email address itself changes.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	MarkVerified(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error)
}

// NotificationKind discriminates outbound notification payloads.
type NotificationKind int

const (
	// NotifyPasswordReset is an exported constant or variable used by the authentication engine.
	NotifyPasswordReset NotificationKind = iota
	// NotifyEmailVerification is an exported constant or variable used by the authentication engine.
	NotifyEmailVerification
)

// Notification is one outbound message handed to the [Notifier].
type Notification struct {
	Kind      NotificationKind
	Recipient string
	Token     string
}

// Notifier delivers notifications out-of-band (typically email). Delivery
// is fire-and-forget from the engine's perspective: a Notifier error is
// logged by the dispatcher and never surfaces to the request that caused
// the notification.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NoOpNotifier discards notifications. Useful in tests and as the default
// when no notifier is wired.
type NoOpNotifier struct{}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpNotifier) Send(ctx context.Context, n Notification) error { return nil }

// AuthResult is returned by [Engine.Validate]: the token's subject plus
// the freshly loaded account record it maps to.
type AuthResult struct {
	Subject string
	User    UserRecord
}
