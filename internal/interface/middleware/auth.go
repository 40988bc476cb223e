package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
)

// Gin context keys set by Protect.
const (
	CtxUserKey     = "user"
	CtxUserIDKey   = "userID"
	CtxUserRoleKey = "userRole"
)

const msgForbidden = "You do not have permission to perform this action"

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

// Protect requires a valid access token whose user still exists.
// The token is read from the Authorization header or the jwt cookie.
func Protect(auth Authenticator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := auth.Authenticate(c.Request.Context(), AccessToken(c))
		if err != nil {
			response.FromError(c, err, logger)
			return
		}
		c.Set(CtxUserKey, u)
		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxUserRoleKey, string(u.Role))
		c.Next()
	}
}

// RestrictTo lets the request through only for the given roles. Must run after Protect.
func RestrictTo(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := entity.Role(c.GetString(CtxUserRoleKey))
		if !slices.Contains(roles, role) {
			response.FromError(c, apperror.New(apperror.KindForbidden, msgForbidden), nil)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Protect.
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*entity.User)
	return u, ok && u != nil
}
