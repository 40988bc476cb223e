package application

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/validation"
)

// User-facing messages.
const (
	msgDuplicateEmail     = "Email already in use"
	msgDuplicateReview    = "Product already reviewed"
	msgInvalidCredentials = "Incorrect email or password"
	msgTokenExpired       = "Your token has expired! Please log in again."
	msgTokenInvalid       = "Invalid token. Please log in again."
	msgResetTokenInvalid  = "Token is invalid or has expired"
	msgNotLoggedIn        = "You are not logged in! Please log in to get access."
	msgUserGone           = "The user belonging to this token no longer exists."
	msgUserNotFound       = "There is no user with email address."
	msgNoUserWithID       = "No user found with that ID."
	msgProductNotFound    = "No product found with that ID"
	msgEmailFailed        = "There was an error sending the email. Try again later!"
)

// internal wraps an unexpected store or dependency failure with the operation name.
func internal(op string, err error) error {
	return apperror.Internal(fmt.Errorf("%s: %w", op, err))
}

// tokenError maps token service failures onto the error taxonomy.
func tokenError(err error) error {
	if errors.Is(err, helpers.ErrTokenExpired) {
		return apperror.Wrap(apperror.KindTokenExpired, msgTokenExpired, err)
	}
	return apperror.Wrap(apperror.KindTokenInvalid, msgTokenInvalid, err)
}

// notFound maps repository.ErrNotFound onto kind and anything else onto an internal error.
func notFound(op string, err error, kind apperror.Kind, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.Wrap(kind, msg, err)
	}
	return internal(op, err)
}

// fieldErrors collects validation messages from several sources into a single error.
type fieldErrors map[string]string

func (f fieldErrors) add(m map[string]string) {
	for k, v := range m {
		if _, ok := f[k]; !ok {
			f[k] = v
		}
	}
}

func (f fieldErrors) addErr(err error) {
	if err != nil {
		f.add(validation.ToDetails(err))
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperror.Validation(f)
}
