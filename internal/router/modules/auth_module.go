package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-ecommerce/internal/container"
	handlers "github.com/oksasatya/go-ddd-ecommerce/internal/interface/http"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
)

// AuthModule wires the auth handlers.
// Public: register, login, refresh-token, forgotPassword, resetPassword/:token, logout
// Protected: me
type AuthModule struct {
	Handler *handlers.AuthHandler
	Auth    middleware.Authenticator
}

func NewAuthModule(h *handlers.AuthHandler, auth middleware.Authenticator) *AuthModule {
	return &AuthModule{Handler: h, Auth: auth}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// password reset emails are expensive, so they get a tighter per-IP budget
	forgotLimiter := middleware.RateLimit(container.RateLimitStore(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	g := rg.Group("/auth")
	g.POST("/register", m.Handler.Register)
	g.POST("/login", m.Handler.Login)
	g.POST("/refresh-token", m.Handler.Refresh)
	g.POST("/forgotPassword", forgotLimiter, m.Handler.ForgotPassword)
	g.PATCH("/resetPassword/:token", m.Handler.ResetPassword)
	g.GET("/logout", m.Handler.Logout)

	g.GET("/me", middleware.Protect(m.Auth, container.GetLogger()), m.Handler.Me)
}
