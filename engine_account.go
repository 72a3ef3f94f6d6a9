package gatekit

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username string
	FullName string
	Email    string
	Password string
}

// Register creates a new account with verified=false and queues an
// email-verification notification. Fails with [ErrAccountExists] on a
// duplicate username or email and with [ErrPasswordPolicy] or
// [ErrInvalidInput] on bad input.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" {
		return UserRecord{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return UserRecord{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if err := e.checkPasswordPolicy(input.Password); err != nil {
		return UserRecord{}, err
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return UserRecord{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Username:     input.Username,
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return UserRecord{}, ErrAccountExists
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.issueVerification(ctx, user)
	return user, nil
}

// GetUser loads the account for a token subject (username).
func (e *Engine) GetUser(ctx context.Context, username string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	user, err := e.userProvider.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return user, nil
}

// UpdateProfile applies a profile change. Changing the email address
// drops verification back to false (the only sanctioned exception to the
// one-way verified transition) and queues a fresh verification code for
// the new address.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	if update.Email != nil {
		trimmed := strings.TrimSpace(*update.Email)
		if _, err := mail.ParseAddress(trimmed); err != nil {
			return UserRecord{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
		}
		update.Email = &trimmed
	}

	current, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	emailChanged := update.Email != nil && *update.Email != current.Email

	user, err := e.userProvider.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return UserRecord{}, ErrAccountExists
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if emailChanged {
		e.issueVerification(ctx, user)
	}
	return user, nil
}
