package gatekit

import (
	"context"
	"errors"
	"testing"
)

func TestRequestPasswordResetIsEnumerationSafe(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	if err := engine.RequestPasswordReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("known email: %v", err)
	}
	if err := engine.RequestPasswordReset(ctx, "ghost@x.com"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}

	drainNotifications(engine)
	sent := notifier.all()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1 (known address only)", len(sent))
	}
	if sent[0].Kind != NotifyPasswordReset || sent[0].Recipient != "alice@x.com" || sent[0].Token == "" {
		t.Fatalf("unexpected notification: %+v", sent[0])
	}
}

func TestPasswordResetFullFlow(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	if err := engine.RequestPasswordReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	drainNotifications(engine)
	token := notifier.all()[0].Token

	userID, err := engine.ValidateResetToken(ctx, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if userID != "seed-alice" {
		t.Fatalf("userID = %q", userID)
	}

	if err := engine.ConfirmPasswordReset(ctx, token, "battery-staple"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := engine.Authenticate(ctx, "alice", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Authenticate(ctx, "alice", "battery-staple"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestConfirmPasswordResetReplay(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	if err := engine.RequestPasswordReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	drainNotifications(engine)
	token := notifier.all()[0].Token

	if err := engine.ConfirmPasswordReset(ctx, token, "battery-staple"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := engine.ConfirmPasswordReset(ctx, token, "another-pass1"); !errors.Is(err, ErrResetTokenConsumed) {
		t.Fatalf("replay err = %v, want ErrResetTokenConsumed", err)
	}
}

func TestConfirmPasswordResetBadToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, nil)
	ctx := context.Background()

	if err := engine.ConfirmPasswordReset(ctx, "deadbeef", "battery-staple"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("err = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	up := newMockUserProvider()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	if err := engine.RequestPasswordReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	drainNotifications(engine)
	token := notifier.all()[0].Token

	mr.FastForward(engine.config.PasswordReset.Window + 1)

	if _, err := engine.ValidateResetToken(ctx, token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("err = %v, want ErrResetTokenInvalid", err)
	}
}

func TestConfirmPasswordResetEnforcesPolicy(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	if err := engine.RequestPasswordReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	drainNotifications(engine)
	token := notifier.all()[0].Token

	if err := engine.ConfirmPasswordReset(ctx, token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}

	// A rejected password must not burn the token.
	if err := engine.ConfirmPasswordReset(ctx, token, "battery-staple"); err != nil {
		t.Fatalf("confirm after policy failure: %v", err)
	}
}
