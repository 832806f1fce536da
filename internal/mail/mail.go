// Package mail delivers password-reset emails.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const resetSubject = "Password Reset"

// ResetLink builds the link sent to the account holder.
func ResetLink(base, rawToken string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + rawToken
}

func resetBody(link string, ttl time.Duration) string {
	return fmt.Sprintf(
		`<p>You requested a password reset.</p>`+
			`<p><a href="%s">Click here to reset your password</a></p>`+
			`<p>This link will expire in %d minutes.</p>`,
		link, int(ttl.Minutes()),
	)
}

// SMTPMailer sends mail through an SMTP relay. Port 465 uses implicit TLS;
// other ports negotiate STARTTLS.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	resetURL string
	resetTTL time.Duration
}

func NewSMTPMailer(host, port, user, pass, from, resetURL string, resetTTL time.Duration) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: user,
		password: pass,
		from:     from,
		resetURL: resetURL,
		resetTTL: resetTTL,
	}
}

// SendPasswordResetEmail mails the reset link for rawToken to address.
func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, address, rawToken string) error {
	body := resetBody(ResetLink(m.resetURL, rawToken), m.resetTTL)
	return m.send(ctx, address, resetSubject, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", m.from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)
	addr := net.JoinHostPort(m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if m.port != "465" {
		if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

// LogMailer stands in for SMTP when no relay is configured. It records the
// recipient only.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, address, _ string) error {
	m.logger.Info("password reset email not sent, smtp not configured", zap.String("to", address))
	return nil
}
