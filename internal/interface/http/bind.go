package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/validation"
)

const msgBodyTooLarge = "Request body is too large"

// bindJSON decodes the request body into dst. On failure it writes the error
// response and returns false.
func bindJSON(c *gin.Context, dst any, logger *logrus.Logger) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeBindError(c, err, logger)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error, logger *logrus.Logger) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		response.Abort(c, http.StatusRequestEntityTooLarge, msgBodyTooLarge, nil)
		return
	}
	response.FromError(c, apperror.Validation(validation.ToDetails(err)), logger)
}
