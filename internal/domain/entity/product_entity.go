package entity

import (
	"errors"
	"math"
	"time"
)

// DefaultAverageRating is the rating a product carries until its first review.
const DefaultAverageRating = 4.5

// ErrAlreadyReviewed is returned when a user reviews the same product twice.
var ErrAlreadyReviewed = errors.New("product already reviewed")

// Review is one user's rating of a product. UserName is resolved on read.
type Review struct {
	UserID    string    `json:"userId" binding:"required"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating" binding:"min=1,max=5"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is the aggregate root for the catalog store.
// The binding tags are the single validation contract for products.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" binding:"required,min=2"`
	Description   string    `json:"description" binding:"required,min=10"`
	Price         float64   `json:"price" binding:"gt=0"`
	Category      string    `json:"category" binding:"required,min=2"`
	Stock         int       `json:"stock" binding:"min=0"`
	Images        []string  `json:"images" binding:"max=5,dive,url"`
	Ratings       []Review  `json:"ratings" binding:"dive"`
	AverageRating float64   `json:"averageRating" binding:"min=1,max=5"`
	NumOfReviews  int       `json:"numOfReviews" binding:"min=0"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewProduct returns a product with catalog defaults applied.
func NewProduct() *Product {
	return &Product{
		Images:        []string{},
		Ratings:       []Review{},
		AverageRating: DefaultAverageRating,
	}
}

// HasReviewFrom reports whether userID already reviewed the product.
func (p *Product) HasReviewFrom(userID string) bool {
	for _, r := range p.Ratings {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddReview appends r and recomputes NumOfReviews and AverageRating.
func (p *Product) AddReview(r Review) error {
	if p.HasReviewFrom(r.UserID) {
		return ErrAlreadyReviewed
	}
	p.Ratings = append(p.Ratings, r)
	p.RecomputeRating()
	return nil
}

// RecomputeRating derives the aggregate fields from Ratings. A product without
// reviews keeps its current average.
func (p *Product) RecomputeRating() {
	p.NumOfReviews = len(p.Ratings)
	if len(p.Ratings) == 0 {
		return
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Rating
	}
	p.AverageRating = RoundRating(float64(sum) / float64(len(p.Ratings)))
}

// RoundRating rounds to one decimal place: 4.666 -> 4.7.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
