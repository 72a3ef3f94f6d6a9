package gatekit

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatekit/gatekit/internal/stores"
)

// RequestPasswordReset starts a reset flow for the account owning email.
// It ALWAYS returns nil: the response for an unknown address is
// indistinguishable from the response for a registered one, so the
// endpoint cannot be used to enumerate accounts. Only the registered path
// stores a token and queues a notification, and only the logs can tell
// the two apart — including the case where issuance itself fails.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.log.Info("password reset requested for unknown email")
			return nil
		}
		e.log.Error("password reset lookup failed", "err", err)
		return nil
	}

	token, err := e.resetStore.Issue(ctx, user.UserID, e.config.PasswordReset.Window)
	if err != nil {
		e.log.Error("password reset issuance failed", "user_id", user.UserID, "err", err)
		return nil
	}

	e.notify.Emit(ctx, Notification{
		Kind:      NotifyPasswordReset,
		Recipient: user.Email,
		Token:     token,
	})
	return nil
}

// ValidateResetToken reports the owning user of a live reset token
// without consuming it.
func (e *Engine) ValidateResetToken(ctx context.Context, token string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	userID, err := e.resetStore.Validate(ctx, token)
	if err != nil {
		return "", mapResetError(err)
	}
	return userID, nil
}

// ConfirmPasswordReset redeems a reset token and applies the new
// password. Consumption is atomic: of two racing redemptions of the same
// token, exactly one applies the change and the other fails with
// [ErrResetTokenConsumed]. On success every other outstanding reset token
// for the identity is revoked.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	userID, err := e.resetStore.Consume(ctx, token)
	if err != nil {
		return mapResetError(err)
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Best effort: the credential change is already committed.
	if err := e.resetStore.RevokeAll(ctx, userID); err != nil {
		e.log.Warn("reset token revocation failed", "user_id", userID, "err", err)
	}
	return nil
}

func mapResetError(err error) error {
	switch {
	case errors.Is(err, stores.ErrTokenConsumed):
		return ErrResetTokenConsumed
	case errors.Is(err, stores.ErrTokenNotFound):
		return ErrResetTokenInvalid
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
