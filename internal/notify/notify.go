// Package notify renders ledger notifications and hands them to a mail transport.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[domain.NotificationKind]string{
	domain.NotifySubmitted:     "We received your request",
	domain.NotifyApproved:      "Your transaction was approved",
	domain.NotifyRejected:      "Your transaction was not approved",
	domain.NotifyNewSubmission: "New transaction awaiting review",
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Transport delivers a rendered message.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// Notifier renders a template per notification kind and delivers it.
type Notifier struct {
	templates *template.Template
	transport Transport
}

func New(transport Transport) (*Notifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Notifier{templates: tmpl, transport: transport}, nil
}

// Send renders kind with data and delivers it to address.
func (n *Notifier) Send(ctx context.Context, address string, kind domain.NotificationKind, data map[string]any) error {
	msg, err := n.Render(address, kind, data)
	if err != nil {
		return err
	}
	if err := n.transport.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("%w: deliver %s: %v", domain.ErrDependencyUnavailable, kind, err)
	}
	return nil
}

func (n *Notifier) Render(address string, kind domain.NotificationKind, data map[string]any) (Message, error) {
	subject, ok := subjects[kind]
	if !ok {
		return Message{}, fmt.Errorf("%w: unknown notification kind %q", domain.ErrInvalidInput, kind)
	}
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Message{To: address, Subject: subject, HTML: buf.String()}, nil
}
