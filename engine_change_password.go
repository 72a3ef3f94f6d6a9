package gatekit

import (
	"context"
	"errors"
	"fmt"
)

// ChangePassword replaces the credential of an authenticated user after
// re-verifying the current password. Outstanding reset tokens for the
// identity are revoked: a credential change invalidates every pending
// reset, however it was authorized.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := e.resetStore.RevokeAll(ctx, userID); err != nil {
		e.log.Warn("reset token revocation failed", "user_id", userID, "err", err)
	}
	return nil
}
