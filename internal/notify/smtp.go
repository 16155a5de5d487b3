// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds the whole exchange when ctx has no earlier deadline.
	Timeout time.Duration
}

// SMTPMailer sends mail over implicit TLS (port 465 style) with PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, oops.Code("SMTP_INVALID_CONFIG").Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, oops.Code("SMTP_INVALID_CONFIG").Errorf("smtp sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}}
	return &SMTPMailer{cfg: cfg, dial: func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}}, nil
}

// Send delivers msg. The connection deadline follows ctx.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dial(ctx, addr)
	if err != nil {
		return oops.Code("SMTP_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return oops.Code("SMTP_HANDSHAKE_FAILED").With("addr", addr).Wrap(err)
	}
	defer client.Close()

	if m.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return oops.Code("SMTP_AUTH_FAILED").With("username", m.cfg.Username).Wrap(err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "mail from").Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "rcpt to").Wrap(err)
	}

	w, err := client.Data()
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "data").Wrap(err)
	}
	if _, err := w.Write(buildMessage(m.cfg.From, msg)); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "write body").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "end data").Wrap(err)
	}

	//nolint:errcheck // message is already accepted
	client.Quit()
	return nil
}

func buildMessage(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}
