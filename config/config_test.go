package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.PasswordResetTTL)
	assert.Equal(t, int64(10*1024), cfg.MaxBodyBytes)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, "queue", cfg.MailDelivery)
	assert.True(t, cfg.SecureHeadersEnabled)
	assert.False(t, cfg.ElasticsearchEnable)
	assert.Empty(t, cfg.CORSOrigins())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_ACCESS_TTL", "90m")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("MAIL_SEND_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 90*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.MailSendEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "lots")
	t.Setenv("PASSWORD_RESET_TTL", "soon")
	t.Setenv("COOKIE_SECURE", "maybe")

	cfg := Load()

	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, 10*time.Minute, cfg.PasswordResetTTL)
	assert.False(t, cfg.CookieSecure)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "5433", DBName: "shop", DBSSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/shop?sslmode=require", cfg.PostgresDSN())
}
