package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "password_reset"
	Data     map[string]any `json:"data,omitempty"`
}

// ErrEmptyJob is returned for a job with no recipient or no body to send.
var ErrEmptyJob = errors.New("mailer: job has no recipient or content")

// Resolve renders the job's template, if any, into subject, text and html.
// Explicit Subject, Text and HTML fields win over the rendered ones.
func (j EmailJob) Resolve() (subject, text, html string, err error) {
	subject, text, html = j.Subject, j.Text, j.HTML
	if j.Template != "" {
		s, t, h, rerr := templates.Render(j.Template, j.Data)
		if rerr != nil {
			return "", "", "", rerr
		}
		if subject == "" {
			subject = s
		}
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	if j.To == "" || (text == "" && html == "") {
		return "", "", "", ErrEmptyJob
	}
	return subject, text, html, nil
}

// Publisher puts a JSON message on the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier hands password reset emails to the email worker through the queue.
type QueueNotifier struct {
	Publisher Publisher
	Brand     templates.Brand
	TTL       time.Duration
}

func NewQueueNotifier(p Publisher, brand templates.Brand, ttl time.Duration) *QueueNotifier {
	return &QueueNotifier{Publisher: p, Brand: brand, TTL: ttl}
}

func (n *QueueNotifier) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	job := EmailJob{
		To:       to,
		Template: templates.PasswordReset,
		Data:     templates.NewPasswordResetData(n.Brand, name, to, resetURL, n.TTL),
	}
	return n.Publisher.PublishJSON(ctx, job)
}
