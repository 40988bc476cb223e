package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/mailer/templates"
)

// Mailgun wraps Mailgun client configuration.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string
	Brand  templates.Brand
	TTL    time.Duration
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender}
}

// Send sends an email via Mailgun. html is optional; if provided it will be used as HTML body.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	client := mg.NewMailgun(m.Domain, m.APIKey)
	msg := client.NewMessage(m.Sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _, err := client.Send(c, msg)
	return err
}

// Deliver renders and sends a queued job.
func (m *Mailgun) Deliver(ctx context.Context, job EmailJob) error {
	subject, text, html, err := job.Resolve()
	if err != nil {
		return err
	}
	return m.Send(ctx, job.To, subject, text, html)
}

// SendPasswordReset sends the reset email in-process, without the queue.
func (m *Mailgun) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	return m.Deliver(ctx, EmailJob{
		To:       to,
		Template: templates.PasswordReset,
		Data:     templates.NewPasswordResetData(m.Brand, name, to, resetURL, m.TTL),
	})
}
