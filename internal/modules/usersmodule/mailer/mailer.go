// Package mailer sends account emails over SMTP
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/logger"
)

// PasswordResetSubject is the subject of reset emails
const PasswordResetSubject = "Password reset message"

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var resetTemplate = template.Must(template.New("reset").Parse(`Hello,

A password reset was requested for {{.Email}}.

Your temporary password is: {{.Password}}

Open the link below to activate it. The link expires in {{.TTL}}.

{{.URL}}

If you did not request a reset, ignore this message.
`))

// Mailer renders account emails and hands them to a Sender
type Mailer struct {
	sender Sender
	log    hclog.Logger
}

// New creates a mailer. With no SMTP host configured, messages are logged instead of sent.
func New(cfg config.MailConfig) *Mailer {
	var sender Sender = &LogSender{log: logger.Named("mailer")}
	if cfg.Host != "" {
		sender = NewSMTPSender(cfg)
	}
	return NewWithSender(sender)
}

// NewWithSender creates a mailer using sender
func NewWithSender(sender Sender) *Mailer {
	return &Mailer{sender: sender, log: logger.Named("mailer")}
}

// SendPasswordReset mails the temporary password and confirmation link.
// Delivery failures are logged and not returned.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, url, password string, ttl time.Duration) {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, map[string]interface{}{
		"Email":    to,
		"Password": password,
		"URL":      url,
		"TTL":      ttl,
	})
	if err != nil {
		m.log.Error("failed to render reset email", "error", err)
		return
	}

	msg := Message{To: to, Subject: PasswordResetSubject, Body: body.String()}
	if err := m.sender.Send(ctx, msg); err != nil {
		m.log.Error("Failed to send email", "error_type", fmt.Sprintf("%T", err), "error", err)
	}
}

// LogSender writes messages to the log
type LogSender struct {
	log hclog.Logger
}

// Send logs msg
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info("email not sent, no SMTP host configured", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SMTPSender delivers messages through one SMTP server
type SMTPSender struct {
	cfg     config.MailConfig
	timeout time.Duration
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// Send delivers msg, upgrading with STARTTLS when configured
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(s.format(msg))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	// the message is accepted once Data closes
	_ = client.Quit()
	return nil
}

func (s *SMTPSender) format(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.String()
}

// Outbox records messages instead of sending them
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send appends msg, or returns Err when set
func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if o.Err != nil {
		return o.Err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}
