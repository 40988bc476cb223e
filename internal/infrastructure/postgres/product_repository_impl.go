package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

const productColumns = `id, name, description, price, category, stock, images,
		average_rating, num_of_reviews, created_at, updated_at`

const reviewSelect = `
		SELECT r.product_id, r.user_id, COALESCE(u.name, ''), r.rating, r.comment, r.created_at
		FROM product_reviews r
		LEFT JOIN users u ON u.id = r.user_id`

type ProductRepository struct {
	db DB
}

func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	p := &entity.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.Images,
		&p.AverageRating, &p.NumOfReviews, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Ratings = []entity.Review{}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	if p.Images == nil {
		p.Images = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, category, stock, images, average_rating, num_of_reviews)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Price, p.Category, p.Stock, p.Images, p.AverageRating)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.Ratings = []entity.Review{}
	p.NumOfReviews = 0
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if err := r.attachReviews(ctx, []*entity.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return repository.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, category = $4, stock = $5, images = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`, p.Name, p.Description, p.Price, p.Category, p.Stock, p.Images, p.ID)
	if err := row.Scan(&p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	res, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context, q repository.ProductQuery) ([]*entity.Product, int64, error) {
	where, args, err := buildProductWhere(q)
	if err != nil {
		return nil, 0, err
	}
	order, err := buildProductOrder(q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	sql := `SELECT ` + productColumns + ` FROM products` + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, sql, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]*entity.Product, 0, q.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if err := r.attachReviews(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// attachReviews loads reviews for all products in one query, resolving reviewer names.
func (r *ProductRepository) attachReviews(ctx context.Context, products []*entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	byID := make(map[string]*entity.Product, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	rows, err := r.db.Query(ctx, reviewSelect+`
		WHERE r.product_id = ANY($1::uuid[])
		ORDER BY r.created_at, r.user_id
	`, ids)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID string
			rv        entity.Review
		)
		if err := rows.Scan(&productID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return fmt.Errorf("scan review: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Ratings = append(p.Ratings, rv)
		}
	}
	return rows.Err()
}

// AddReview inserts the review and recomputes the aggregates from the review
// table inside one transaction, so concurrent reviews cannot lose updates.
func (r *ProductRepository) AddReview(ctx context.Context, p *entity.Product, rv entity.Review) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO product_reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
	`, p.ID, rv.UserID, rv.Rating, rv.Comment)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return repository.ErrDuplicate
		case isForeignKeyViolation(err):
			return repository.ErrNotFound
		}
		return fmt.Errorf("insert review: %w", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE products p
		SET num_of_reviews = s.cnt,
			average_rating = ROUND(s.avg, 1)::float8,
			updated_at = now()
		FROM (SELECT COUNT(*)::int AS cnt, AVG(rating) AS avg FROM product_reviews WHERE product_id = $1) s
		WHERE p.id = $1
		RETURNING p.num_of_reviews, p.average_rating, p.updated_at
	`, p.ID).Scan(&p.NumOfReviews, &p.AverageRating, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update review aggregates: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
