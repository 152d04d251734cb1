// Package mailer sends transactional email through an external provider.
// The invitation workflow depends only on the Sender interface, so the
// provider can be swapped without touching the workflow.
package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Sender delivers a single email notification.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs the email instead of sending it. Used in development and
// whenever no provider is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("Email not sent: no provider configured, logging instead")
	return nil
}
