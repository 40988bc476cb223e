package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
)

// ResetPasswordPath is where the emailed reset link points, relative to the host.
const ResetPasswordPath = "/api/auth/resetPassword/"

type AuthHandler struct {
	Svc     *application.AuthService
	Cookies *helpers.Manager
	Logger  *logrus.Logger

	// ResetURL is the base of the emailed reset link. When empty the link is
	// built from the request host and ResetPasswordPath.
	ResetURL string
}

func NewAuthHandler(svc *application.AuthService, cookies *helpers.Manager, logger *logrus.Logger, resetURL string) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger, ResetURL: resetURL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// sendTokens writes {token, refreshToken, user} and sets the access cookie.
func (h *AuthHandler) sendTokens(c *gin.Context, status int, res *application.AuthResult, message string) {
	h.Cookies.SetAccess(c, res.AccessToken, res.AccessTokenExpiry)
	response.Success(c, status, gin.H{
		"token":        res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user":         res.User,
	}, message, gin.H{
		"access_expires_at":  res.AccessTokenExpiry,
		"refresh_expires_at": res.RefreshTokenExpiry,
	})
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var in application.RegisterInput
	if !bindJSON(c, &in, h.Logger) {
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	h.sendTokens(c, http.StatusCreated, res, "registered")
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, h.Logger) {
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	c.Header("Authorization", "Bearer "+res.AccessToken)
	h.sendTokens(c, http.StatusOK, res, "login successful")
}

// Refresh POST /api/auth/refresh-token {refreshToken}
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req, h.Logger) {
		return
	}
	access, exp, err := h.Svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	h.Cookies.SetAccess(c, access, exp)
	response.Success(c, http.StatusOK, gin.H{"token": access}, "token refreshed", gin.H{"access_expires_at": exp})
}

// ForgotPassword POST /api/auth/forgotPassword {email}
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req, h.Logger) {
		return
	}
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email, h.resetLink(c)); err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Token sent to email!"}, "Token sent to email!", nil)
}

// ResetPassword PATCH /api/auth/resetPassword/:token {password}
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req, h.Logger) {
		return
	}
	res, err := h.Svc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	h.sendTokens(c, http.StatusOK, res, "password updated")
}

// Me GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.Svc.Profile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": u}, "profile", nil)
}

// Logout GET /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, nil, "logged out", nil)
}

func (h *AuthHandler) resetLink(c *gin.Context) func(token string) string {
	base := strings.TrimRight(h.ResetURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host + strings.TrimRight(ResetPasswordPath, "/")
	}
	return func(token string) string { return base + "/" + token }
}
