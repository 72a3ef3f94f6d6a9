package gatekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatekit/gatekit/internal/stores"
	"github.com/gatekit/gatekit/jwt"
	"github.com/gatekit/gatekit/password"
	"github.com/gatekit/gatekit/store"
)

// Engine defines a public type used by gatekit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	log          *slog.Logger
	userProvider UserProvider
	hasher       *password.Hasher
	tokens       *jwt.Manager
	resetStore   *stores.TokenStore
	verifyStore  *stores.TokenStore
	kv           *store.Store
	sessions     *store.Sessions
	notify       *notifyDispatcher
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notify != nil {
		e.notify.Close()
	}
}

// Store exposes the engine's TTL key-value store for callers that share
// the same Redis deployment (cache endpoints, memoized computations).
func (e *Engine) Store() *store.Store {
	if e == nil {
		return nil
	}
	return e.kv
}

// Sessions exposes the engine's session manager.
func (e *Engine) Sessions() *store.Sessions {
	if e == nil {
		return nil
	}
	return e.sessions
}

// NotificationsDropped reports how many outbound notifications were shed
// because the dispatcher queue was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

// Authenticate verifies username/password and issues a bearer token. The
// same [ErrInvalidCredentials] comes back for an unknown username and a
// wrong password, so a caller cannot probe which usernames exist.
func (e *Engine) Authenticate(ctx context.Context, username, pass string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if username == "" || pass == "" {
		return "", ErrInvalidCredentials
	}

	user, err := e.userProvider.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if user.Disabled {
		return "", ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	if e.config.Password.RehashOnLogin {
		if weak, err := e.hasher.NeedsRehash(user.PasswordHash); err == nil && weak {
			e.rehash(ctx, user.UserID, pass)
		}
	}

	return e.tokens.Issue(user.Username, e.config.JWT.AccessTTL)
}

// Validate parses a bearer token and loads the account it names. Token
// failures map to the jwt package's sentinels; a subject whose account no
// longer exists fails with [ErrUnauthorized].
func (e *Engine) Validate(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := e.userProvider.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}

	return &AuthResult{Subject: claims.Subject, User: user}, nil
}

// rehash transparently upgrades a stored digest after a successful login.
// Best effort: the login already succeeded, so failures are only logged.
func (e *Engine) rehash(ctx context.Context, userID, pass string) {
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		e.log.Warn("password rehash failed", "user_id", userID, "err", err)
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.log.Warn("password rehash store failed", "user_id", userID, "err", err)
	}
}

func (e *Engine) checkPasswordPolicy(pass string) error {
	if len(pass) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	return nil
}
