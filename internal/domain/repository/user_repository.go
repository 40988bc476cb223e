package repository

import (
	"context"
	"time"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	// Create assigns ID and timestamps. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetByResetToken finds the user whose reset digest matches and whose expiry is after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error)
	// Update persists every mutable field, including password and reset fields.
	Update(ctx context.Context, u *entity.User) error
	// SetPasswordReset writes only the reset fields; nil clears them.
	SetPasswordReset(ctx context.Context, id string, tokenHash *string, expires *time.Time) error
}
