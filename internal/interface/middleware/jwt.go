package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

// AccessToken extracts the access token from "Authorization: Bearer <token>",
// falling back to the jwt cookie. Empty when neither is present.
func AccessToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if token, err := c.Cookie(helpers.AccessCookieName); err == nil && token != "" && token != "loggedout" {
		return token
	}
	return ""
}
