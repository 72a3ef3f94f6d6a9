package gatekit

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatekit/gatekit/internal/stores"
)

// issueVerification mints a verification code for user and queues the
// notification. Internal failures are logged, never surfaced: the calling
// flow (registration, email change) has already succeeded.
func (e *Engine) issueVerification(ctx context.Context, user UserRecord) {
	code, err := e.verifyStore.Issue(ctx, user.UserID, e.config.Verification.Window)
	if err != nil {
		e.log.Error("verification code issuance failed", "user_id", user.UserID, "err", err)
		return
	}
	e.notify.Emit(ctx, Notification{
		Kind:      NotifyEmailVerification,
		Recipient: user.Email,
		Token:     code,
	})
}

// ConfirmEmailVerification consumes a verification code and marks the
// owning account verified. The transition is one-way; confirming an
// already-verified account is a no-op success. Unknown, expired, and
// replayed codes all fail with [ErrVerificationInvalid] — the distinction
// is visible only in logs.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if code == "" {
		return ErrVerificationInvalid
	}

	userID, err := e.verifyStore.Consume(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrTokenConsumed):
			e.log.Info("verification code replay", "err", err)
			return ErrVerificationInvalid
		case errors.Is(err, stores.ErrTokenNotFound):
			return ErrVerificationInvalid
		default:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if err := e.userProvider.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrVerificationInvalid
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
