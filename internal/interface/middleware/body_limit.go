package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
)

const msgBodyTooLarge = "Request body is too large"

// BodyLimit caps request bodies: jsonLimit for ordinary bodies and uploadLimit
// for multipart forms. Requests announcing a larger Content-Length are rejected
// up front; the rest are cut off by http.MaxBytesReader while being read.
func BodyLimit(jsonLimit, uploadLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		limit := jsonLimit
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = uploadLimit
		}
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			response.Abort(c, http.StatusRequestEntityTooLarge, msgBodyTooLarge, nil)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
