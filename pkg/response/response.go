package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
)

type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      T           `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Kind   apperror.Kind     `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Success writes a success envelope and returns it.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
	}
	ctx.JSON(status, resp)
	return resp
}

func build[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     err,
	}
}

// Error writes a failure envelope and returns it.
func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	resp := build[T](ctx, status, message, err)
	ctx.JSON(resp.Status, resp)
	return resp
}

// Abort writes a failure envelope and stops the handler chain. For middleware.
func Abort(ctx *gin.Context, status int, message string, err interface{}) {
	resp := build[any](ctx, status, message, err)
	ctx.AbortWithStatusJSON(resp.Status, resp)
}

// FromError converts a workflow error into the failure envelope and logs it.
// Internal causes are logged but never shown to the caller.
func FromError(ctx *gin.Context, err error, logger *logrus.Logger) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	body := ErrorBody{Kind: kind}

	var ae *apperror.Error
	if errors.As(err, &ae) && kind == apperror.KindValidation {
		body.Fields = ae.Fields
	}

	if logger != nil {
		entry := logger.WithFields(logrus.Fields{
			"request_id": ctx.GetString("request_id"),
			"method":     ctx.Request.Method,
			"route":      ctx.FullPath(),
			"status":     status,
			"kind":       kind,
		})
		if id := ctx.Param("id"); id != "" {
			entry = entry.WithField("entity_id", id)
		}
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
		} else {
			entry.WithError(err).Debug("request rejected")
		}
	}

	resp := build[any](ctx, status, apperror.PublicMessage(err), body)
	ctx.AbortWithStatusJSON(resp.Status, resp)
}
