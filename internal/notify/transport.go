// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reqaudit/internal/logging"
)

// Transport delivers alerts to an external channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// LogTransport writes alerts to the application log. It is the transport
// used when no external channel is configured.
type LogTransport struct{}

// Name implements Transport.
func (LogTransport) Name() string { return "log" }

// Send implements Transport.
func (LogTransport) Send(_ context.Context, alert *Alert) error {
	logging.Error().
		Str("exception_type", alert.ExceptionType).
		Str("alert_message", alert.Message).
		Strs("recipients", alert.Recipients).
		Interface("context", alert.Context).
		Msg(alert.Subject)
	return nil
}

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTPTransport sends alerts as plain-text email.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}, nil
}

// Name implements Transport.
func (t *SMTPTransport) Name() string { return "smtp" }

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, alert *Alert) error {
	if alert.Sender == "" {
		return errors.New("alert sender is required")
	}
	if len(alert.Recipients) == 0 {
		return ErrNoRecipients
	}

	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprint(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort cleanup
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort cleanup

	if t.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: t.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(alert.Sender); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range alert.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := io.WriteString(w, buildEmail(alert)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	_ = client.Quit() //nolint:errcheck // message already accepted
	return nil
}

func buildEmail(alert *Alert) string {
	var msg strings.Builder
	msg.WriteString("From: " + alert.Sender + "\r\n")
	msg.WriteString("To: " + strings.Join(alert.Recipients, ", ") + "\r\n")
	msg.WriteString("Subject: " + alert.Subject + "\r\n")
	msg.WriteString("Date: " + alert.Timestamp.Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(alert.Text(), "\n", "\r\n"))
	return msg.String()
}

// WebhookTransport posts alerts as JSON.
type WebhookTransport struct {
	url    string
	client *http.Client
}

// NewWebhookTransport creates a WebhookTransport for url.
func NewWebhookTransport(url string, timeout time.Duration) (*WebhookTransport, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("webhook URL must be http or https: %q", url)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookTransport{url: url, client: &http.Client{Timeout: timeout}}, nil
}

// Name implements Transport.
func (t *WebhookTransport) Name() string { return "webhook" }

// Send implements Transport.
func (t *WebhookTransport) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Reqaudit-Notifier/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best effort cleanup
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
