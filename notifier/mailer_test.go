package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gatekit/gatekit"
)

func TestNewMailerValidation(t *testing.T) {
	if _, err := NewMailer(gatekit.SMTPConfig{From: "noreply@x.com"}); err == nil {
		t.Fatal("missing host accepted")
	}
	if _, err := NewMailer(gatekit.SMTPConfig{Host: "smtp.x.com"}); err == nil {
		t.Fatal("missing from address accepted")
	}
	m, err := NewMailer(gatekit.SMTPConfig{Host: "smtp.x.com", From: "noreply@x.com"})
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if m.cfg.Port != 587 {
		t.Fatalf("default port = %d, want 587", m.cfg.Port)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	m, err := NewMailer(gatekit.SMTPConfig{Host: "smtp.x.com", From: "noreply@x.com"})
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}
	err = m.Send(context.Background(), gatekit.Notification{Kind: gatekit.NotifyPasswordReset, Token: "tok"})
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}

func TestBuildMessageReset(t *testing.T) {
	msg := string(buildMessage("noreply@x.com", gatekit.Notification{
		Kind:      gatekit.NotifyPasswordReset,
		Recipient: "alice@x.com",
		Token:     "tok123",
	}, "https://app.example.com/"))

	for _, want := range []string{
		"From: noreply@x.com\r\n",
		"To: alice@x.com\r\n",
		"Subject: Password reset request\r\n",
		"https://app.example.com/reset-password?token=tok123",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "com//reset") {
		t.Fatal("base URL trailing slash not trimmed")
	}
}

func TestBuildMessageVerification(t *testing.T) {
	msg := string(buildMessage("noreply@x.com", gatekit.Notification{
		Kind:      gatekit.NotifyEmailVerification,
		Recipient: "alice@x.com",
		Token:     "tok456",
	}, "https://app.example.com"))

	if !strings.Contains(msg, "Subject: Verify your email address\r\n") {
		t.Fatalf("wrong subject:\n%s", msg)
	}
	if !strings.Contains(msg, "verify-email?token=tok456") {
		t.Fatalf("missing verification link:\n%s", msg)
	}
}
