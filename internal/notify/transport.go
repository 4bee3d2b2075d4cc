package notify

import (
	"context"
	"fmt"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const senderName = "DelexPay"

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, username, password, from string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTP) Deliver(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, senderName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	// gomail has no context support; give up waiting when ctx ends.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mailjet sends mail through the Mailjet v3.1 send API.
type Mailjet struct {
	client *mailjet.Client
	from   string
}

func NewMailjet(apiKey, secretKey, from string) *Mailjet {
	return &Mailjet{client: mailjet.NewMailjetClient(apiKey, secretKey), from: from}
}

func (m *Mailjet) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	messages := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From: &mailjet.RecipientV31{
				Email: m.from,
				Name:  senderName,
			},
			To: &mailjet.RecipientsV31{
				{Email: msg.To},
			},
			Subject:  msg.Subject,
			HTMLPart: msg.HTML,
		},
	}}
	if _, err := m.client.SendMailV31(&messages); err != nil {
		return fmt.Errorf("mailjet send: %w", err)
	}
	return nil
}

// Log writes messages to the structured log instead of sending them.
type Log struct{}

func (Log) Deliver(_ context.Context, msg Message) error {
	zap.L().Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
