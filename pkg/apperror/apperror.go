package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an application error. Each kind maps to one HTTP status.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindDuplicateEmail     Kind = "duplicate_email"
	KindDuplicateReview    Kind = "duplicate_review"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindTokenInvalid       Kind = "token_invalid"
	KindTokenExpired       Kind = "token_expired"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindUserNotFound       Kind = "user_not_found"
	KindNotificationFailed Kind = "notification_failed"
	KindInternal           Kind = "internal_error"
)

// InternalMessage is the only message ever shown to callers for KindInternal.
const InternalMessage = "Something went wrong. Please try again later."

// Error is the error type returned by application workflows.
// Fields is only populated for KindValidation.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind carrying a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: InternalMessage, Err: err}
}

// Validation builds a validation error listing every violated field.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Input validation failed.", Fields: fields}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindDuplicateEmail, KindDuplicateReview:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindTokenInvalid, KindTokenExpired, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to the caller.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind == KindInternal {
		return InternalMessage
	}
	return ae.Message
}
