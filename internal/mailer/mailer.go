// Package mailer delivers email through Resend and renders the report email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender that sends as from.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, errors.New("NewResendSender: api key is required")
	}
	if from == "" {
		return nil, errors.New("NewResendSender: sender address is required")
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", fmt.Errorf("Send: %w", err)
	}
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("Send: resend: %w", err)
	}
	return resp.Id, nil
}

// LogSender logs messages instead of sending them. It is used when no
// provider key is configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", fmt.Errorf("Send: %w", err)
	}
	id := uuid.NewString()
	s.log.Info().
		Str("message_id", id).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Email not sent (log sender)")
	s.log.Debug().Str("message_id", id).Msg(msg.Text)
	return id, nil
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return errors.New("message has no recipients")
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return errors.New("message has an empty recipient")
		}
	}
	if m.Subject == "" {
		return errors.New("message has no subject")
	}
	return nil
}
