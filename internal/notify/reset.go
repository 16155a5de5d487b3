// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// ResetSubject is the subject line of the password-reset email.
const ResetSubject = "Reset your password"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <p>Hello,</p>
  <p>We received a request to reset the password for {{.Email}}.</p>
  <p><a href="{{.Link}}">Reset your password</a></p>
  <p>This link expires in {{.ExpiresIn}}. If you did not ask for a reset, ignore this email.</p>
</body>
</html>
`))

// ResetNotifier emails password-reset links. It implements auth.Notifier.
type ResetNotifier struct {
	mailer  Mailer
	baseURL *url.URL
	ttl     time.Duration
}

// NewResetNotifier creates a ResetNotifier that links to resetURL with the
// token in the "token" query parameter. ttl is only shown to the reader.
func NewResetNotifier(mailer Mailer, resetURL string, ttl time.Duration) (*ResetNotifier, error) {
	if mailer == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("mailer is required")
	}
	u, err := url.Parse(resetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("reset_url", resetURL).Errorf("reset url must be absolute")
	}
	return &ResetNotifier{mailer: mailer, baseURL: u, ttl: ttl}, nil
}

// SendPasswordReset renders and sends the reset email for token.
func (n *ResetNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, struct {
		Email     string
		Link      string
		ExpiresIn string
	}{
		Email:     email,
		Link:      n.Link(token),
		ExpiresIn: humanDuration(n.ttl),
	})
	if err != nil {
		return oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}

	if err := n.mailer.Send(ctx, Message{To: email, Subject: ResetSubject, HTML: body.String()}); err != nil {
		return oops.With("operation", "send password reset").Wrap(err)
	}
	return nil
}

// Link returns the reset URL carrying token.
func (n *ResetNotifier) Link(token string) string {
	u := *n.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int64(d/time.Minute))
	default:
		return d.String()
	}
}
