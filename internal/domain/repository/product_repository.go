package repository

import (
	"context"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
)

// ProductRepository defines the interface for catalog persistence.
type ProductRepository interface {
	Create(ctx context.Context, p *entity.Product) error
	// GetByID returns the product with its reviews; reviewer names are resolved.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// Update persists the product attributes (not its reviews).
	Update(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, id string) error
	// List returns one page of matches and the total number of matches.
	List(ctx context.Context, q ProductQuery) ([]*entity.Product, int64, error)
	// AddReview stores r and the recomputed aggregates of p atomically.
	// Returns ErrDuplicate when the user already reviewed the product.
	AddReview(ctx context.Context, p *entity.Product, r entity.Review) error
}
