// Package notify delivers notifications outside the portal: SMS through an
// HTTP gateway and email through SMTP.
package notify

import (
	"context"
	"errors"
)

// ErrDisabled is returned by senders that were not configured.
var ErrDisabled = errors.New("notify: channel disabled")

// SMSSender sends a text message to a mobile number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// EmailSender sends a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// NoopSMS is used when no gateway is configured.
type NoopSMS struct{}

func (NoopSMS) SendSMS(context.Context, string, string) error { return ErrDisabled }

// NoopEmail is used when no SMTP server is configured.
type NoopEmail struct{}

func (NoopEmail) SendEmail(context.Context, string, string, string) error { return ErrDisabled }
