package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/validation"
)

// Upload limits for product images.
const (
	MaxImages        = 5
	MaxImageBytes    = 5 << 20
	DefaultSearchHit = 10
)

// ImageStore puts an uploaded image somewhere public and returns its URL.
type ImageStore interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

// ProductIndexer keeps a full-text index of the catalog.
type ProductIndexer interface {
	Index(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]string, error)
}

// ImageUpload is one file received with a create or update request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProductInput carries the attributes a caller may set. Nil fields are left
// untouched on update; on create they keep the catalog defaults.
type ProductInput struct {
	Name        *string  `json:"name" form:"name"`
	Description *string  `json:"description" form:"description"`
	Price       *float64 `json:"price" form:"price"`
	Category    *string  `json:"category" form:"category"`
	Stock       *int     `json:"stock" form:"stock"`
	Images      []string `json:"images" form:"-"`
}

// applyTo copies the supplied fields onto p and returns their Go field names.
func (in ProductInput) applyTo(p *entity.Product) []string {
	var set []string
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		set = append(set, "Name")
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
		set = append(set, "Description")
	}
	if in.Price != nil {
		p.Price = *in.Price
		set = append(set, "Price")
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
		set = append(set, "Category")
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
		set = append(set, "Stock")
	}
	if in.Images != nil {
		p.Images = append([]string{}, in.Images...)
		set = append(set, "Images")
	}
	return set
}

// ProductPage is one page of a listing plus the total number of matches.
type ProductPage struct {
	Products []*entity.Product
	Total    int64
	Page     int
	Limit    int
}

type ProductService struct {
	Repo   repo.ProductRepository
	Images ImageStore
	Index  ProductIndexer
	Logger *logrus.Logger
}

func NewProductService(repo repo.ProductRepository, images ImageStore, index ProductIndexer, logger *logrus.Logger) *ProductService {
	return &ProductService{Repo: repo, Images: images, Index: index, Logger: logger}
}

// Create validates every field, uploads the images and persists the product.
func (s *ProductService) Create(ctx context.Context, in ProductInput, uploads []ImageUpload) (*entity.Product, error) {
	p := entity.NewProduct()
	in.applyTo(p)

	fe := fieldErrors{}
	fe.add(checkUploads(uploads))
	fe.addErr(validation.Struct(p))
	if err := fe.err(); err != nil {
		return nil, err
	}

	if len(uploads) > 0 {
		urls, err := s.upload(ctx, uploads)
		if err != nil {
			return nil, err
		}
		p.Images = urls
	}

	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, internal("create product", err)
	}
	s.index(ctx, p)
	return p, nil
}

// List parses the listing parameters and returns the matching page.
func (s *ProductService) List(ctx context.Context, values url.Values) (*ProductPage, error) {
	q, err := ParseProductQuery(values)
	if err != nil {
		return nil, err
	}
	products, total, err := s.Repo.List(ctx, q)
	if err != nil {
		return nil, internal("list products", err)
	}
	return &ProductPage{Products: products, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get product", err, apperror.KindNotFound, msgProductNotFound)
	}
	return p, nil
}

// Update re-validates only the supplied fields. Uploaded images replace the current ones.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput, uploads []ImageUpload) (*entity.Product, error) {
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get product", err, apperror.KindNotFound, msgProductNotFound)
	}
	set := in.applyTo(p)

	fe := fieldErrors{}
	fe.add(checkUploads(uploads))
	fe.addErr(validation.StructPartial(p, set...))
	if err := fe.err(); err != nil {
		return nil, err
	}

	if len(uploads) > 0 {
		urls, err := s.upload(ctx, uploads)
		if err != nil {
			return nil, err
		}
		p.Images = urls
	}

	if err := s.Repo.Update(ctx, p); err != nil {
		return nil, notFound("update product", err, apperror.KindNotFound, msgProductNotFound)
	}
	s.index(ctx, p)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return notFound("delete product", err, apperror.KindNotFound, msgProductNotFound)
	}
	if s.Index != nil {
		if err := s.Index.Delete(ctx, id); err != nil {
			helpers.LogError(s.Logger, "es delete failed", err, logrus.Fields{"product_id": id})
		}
	}
	return nil
}

// AddReview records one review per user and recomputes the product's rating.
func (s *ProductService) AddReview(ctx context.Context, productID, userID string, rating int, comment string) (*entity.Product, error) {
	rv := entity.Review{UserID: userID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := validation.Struct(rv); err != nil {
		return nil, apperror.Validation(validation.ToDetails(err))
	}

	p, err := s.Repo.GetByID(ctx, productID)
	if err != nil {
		return nil, notFound("get product", err, apperror.KindNotFound, msgProductNotFound)
	}
	if p.HasReviewFrom(userID) {
		return nil, apperror.New(apperror.KindDuplicateReview, msgDuplicateReview)
	}

	if err := s.Repo.AddReview(ctx, p, rv); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, apperror.Wrap(apperror.KindDuplicateReview, msgDuplicateReview, err)
		case errors.Is(err, repo.ErrNotFound):
			return nil, apperror.Wrap(apperror.KindNotFound, msgProductNotFound, err)
		}
		return nil, internal("add review", err)
	}
	p.Ratings = append(p.Ratings, rv)
	s.index(ctx, p)
	return p, nil
}

// Search runs a full-text query against the index, or a substring match on
// name and description when no index is configured or the index fails.
func (s *ProductService) Search(ctx context.Context, q string, size int) ([]*entity.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperror.Validation(map[string]string{"q": "is required"})
	}
	if size <= 0 {
		size = DefaultSearchHit
	}
	size = min(size, MaxLimit)

	if s.Index != nil {
		ids, err := s.Index.Search(ctx, q, size)
		if err == nil {
			return s.loadAll(ctx, ids)
		}
		helpers.LogError(s.Logger, "es search failed, falling back to store", err, logrus.Fields{"q": q})
	}

	products, _, err := s.Repo.List(ctx, repo.ProductQuery{Search: q, Page: 1, Limit: size})
	if err != nil {
		return nil, internal("search products", err)
	}
	return products, nil
}

// loadAll resolves index hits in order, skipping documents the store no longer has.
func (s *ProductService) loadAll(ctx context.Context, ids []string) ([]*entity.Product, error) {
	out := make([]*entity.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.Repo.GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, internal("get product", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *ProductService) upload(ctx context.Context, uploads []ImageUpload) ([]string, error) {
	if s.Images == nil {
		return nil, internal("upload images", errors.New("image storage not configured"))
	}
	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		u, err := s.Images.Upload(ctx, up.Filename, up.ContentType, up.Body, up.Size)
		if err != nil {
			return nil, internal("upload images", err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *ProductService) index(ctx context.Context, p *entity.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, p); err != nil {
		helpers.LogError(s.Logger, "es index failed", err, logrus.Fields{"product_id": p.ID})
	}
}

// checkUploads enforces the image upload filter: at most MaxImages files, each
// an image of at most MaxImageBytes.
func checkUploads(uploads []ImageUpload) map[string]string {
	if len(uploads) > MaxImages {
		return map[string]string{"images": fmt.Sprintf("must contain at most %d items", MaxImages)}
	}
	for i, up := range uploads {
		key := fmt.Sprintf("images[%d]", i)
		if !strings.HasPrefix(up.ContentType, "image/") {
			return map[string]string{key: "Not an image! Please upload only images."}
		}
		if up.Size > MaxImageBytes {
			return map[string]string{key: "must be at most 5MB"}
		}
	}
	return nil
}
