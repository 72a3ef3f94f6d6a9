package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/gatekit/gatekit"
)

// ErrNoRecipient is an exported constant or variable used by the authentication engine.
var ErrNoRecipient = errors.New("notifier: notification has no recipient")

const dialTimeout = 10 * time.Second

// Mailer defines a public type used by gatekit APIs.
//
// Mailer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Mailer struct {
	cfg gatekit.SMTPConfig
}

// NewMailer describes the new mailer operation and its observable behavior.
// NewMailer may return an error when input validation, dependency calls, or security checks fail.
func NewMailer(cfg gatekit.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("notifier: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("notifier: from address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg}, nil
}

// Send delivers one notification as a plain-text email. The context
// bounds the SMTP conversation; a dead relay fails within the dial
// timeout rather than hanging the dispatcher worker.
func (m *Mailer) Send(ctx context.Context, n gatekit.Notification) error {
	if n.Recipient == "" {
		return ErrNoRecipient
	}

	msg := buildMessage(m.cfg.From, n, m.cfg.BaseURL)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notifier: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("notifier: smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(nil); err != nil {
			return fmt.Errorf("notifier: starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notifier: auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("notifier: mail from: %w", err)
	}
	if err := client.Rcpt(n.Recipient); err != nil {
		return fmt.Errorf("notifier: rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notifier: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("notifier: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notifier: close body: %w", err)
	}
	return client.Quit()
}

func buildMessage(from string, n gatekit.Notification, baseURL string) []byte {
	var subject, body string
	switch n.Kind {
	case gatekit.NotifyPasswordReset:
		subject = "Password reset request"
		body = fmt.Sprintf(
			"A password reset was requested for your account.\r\n\r\n"+
				"Reset link: %s/reset-password?token=%s\r\n\r\n"+
				"If you did not request this, ignore this message.\r\n",
			strings.TrimRight(baseURL, "/"), n.Token)
	case gatekit.NotifyEmailVerification:
		subject = "Verify your email address"
		body = fmt.Sprintf(
			"Welcome! Confirm this address to activate your account.\r\n\r\n"+
				"Verification link: %s/verify-email?token=%s\r\n",
			strings.TrimRight(baseURL, "/"), n.Token)
	default:
		subject = "Account notification"
		body = "Your account was updated.\r\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var _ gatekit.Notifier = (*Mailer)(nil)
