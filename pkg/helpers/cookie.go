package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessCookieName is the cookie carrying the access token.
const AccessCookieName = "jwt"

type Manager struct {
	Domain string
	Secure bool
	TTL    time.Duration
}

func NewCookie(domain string, secure bool, ttl time.Duration) *Manager {
	return &Manager{Domain: domain, Secure: secure, TTL: ttl}
}

// SetAccess stores the access token as an httpOnly cookie and mirrors it in the
// Authorization response header.
func (m *Manager) SetAccess(c *gin.Context, access string, aexp time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	exp := aexp
	if m.TTL > 0 {
		if capped := time.Now().Add(m.TTL); capped.Before(exp) {
			exp = capped
		}
	}
	c.SetCookie(AccessCookieName, access, maxAgeFrom(exp), "/", m.Domain, m.Secure, true)
	c.Header("Authorization", "Bearer "+access)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookieName, "", -1, "/", m.Domain, m.Secure, true)
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec < 0 {
		return 0
	}
	return sec
}
