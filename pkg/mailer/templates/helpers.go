package templates

import (
	"fmt"
	"time"

	"github.com/oksasatya/go-ddd-ecommerce/config"
)

// Brand is the sender identity printed in every email.
type Brand struct {
	CompanyName    string
	CompanyAddress string
	AppName        string
	SupportURL     string
}

func BrandFromConfig(cfg *config.Config) Brand {
	return Brand{
		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,
		SupportURL:     cfg.SupportURL,
	}
}

// Option pattern
type Option func(*EmailData)

func WithResetURL(url string) Option { return func(d *EmailData) { d.ResetURL = url } }

func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04")
	}
}

// WithExpiresIn sets both the absolute expiry and a "10 min" style duration text.
func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		WithExpiresAt(time.Now().Add(dur))(d)
		d.ExpiresInText = fmt.Sprintf("%d min", int(dur.Minutes()))
	}
}

// NewBaseEmailData fills the common fields from the brand, then applies opts.
func NewBaseEmailData(b Brand, typ, name, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		AppName:        b.AppName,
		SupportURL:     b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewPasswordResetData(b Brand, name, email, resetURL string, ttl time.Duration) map[string]any {
	d := NewBaseEmailData(b, PasswordReset, name, email, WithResetURL(resetURL), WithExpiresIn(ttl))
	return ToMap(d)
}
