package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

const testProductID = "0b6f8a52-7f43-4c52-9c2e-5f1a3d9e8c71"

var (
	productRowColumns = []string{
		"id", "name", "description", "price", "category", "stock", "images",
		"average_rating", "num_of_reviews", "created_at", "updated_at",
	}
	reviewRowColumns = []string{"product_id", "user_id", "name", "rating", "comment", "created_at"}
)

func TestBuildProductWhere(t *testing.T) {
	tests := []struct {
		name      string
		query     repository.ProductQuery
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no criteria",
			wantWhere: "",
		},
		{
			name: "range and equality",
			query: repository.ProductQuery{Filters: []repository.ProductFilter{
				{Field: repository.FieldPrice, Op: repository.OpGte, Value: 10.0},
				{Field: repository.FieldStock, Op: repository.OpLt, Value: int64(5)},
				{Field: repository.FieldCategory, Op: repository.OpEq, Value: "Laptops"},
			}},
			wantWhere: " WHERE price >= $1 AND stock < $2 AND category = $3",
			wantArgs:  []any{10.0, int64(5), "Laptops"},
		},
		{
			name: "search escapes wildcards",
			query: repository.ProductQuery{
				Filters: []repository.ProductFilter{{Field: repository.FieldAverageRating, Op: repository.OpGt, Value: 4.0}},
				Search:  "100%_off",
			},
			wantWhere: " WHERE average_rating > $1 AND (name ILIKE $2 OR description ILIKE $2)",
			wantArgs:  []any{4.0, `%100\%\_off%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, err := buildProductWhere(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildProductWhere_RejectsUnknownField(t *testing.T) {
	_, _, err := buildProductWhere(repository.ProductQuery{Filters: []repository.ProductFilter{
		{Field: "password", Op: repository.OpEq, Value: "x"},
	}})
	assert.Error(t, err)
}

func TestBuildProductOrder(t *testing.T) {
	order, err := buildProductOrder(nil)
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", order)

	order, err = buildProductOrder([]repository.SortField{
		{Field: repository.FieldPrice},
		{Field: repository.FieldAverageRating, Desc: true},
	})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY price ASC, average_rating DESC, id ASC", order)

	_, err = buildProductOrder([]repository.SortField{{Field: "drop table"}})
	assert.Error(t, err)
}

func TestProductRepository_GetByID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("loads product with reviews", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM products WHERE id = \$1`).
			WithArgs(testProductID).
			WillReturnRows(pgxmock.NewRows(productRowColumns).AddRow(
				testProductID, "Laptop", "A fast laptop", 999.99, "Electronics", 3, []string{"https://cdn/x.png"},
				4.0, 1, now, now,
			))
		mock.ExpectQuery(`FROM product_reviews r`).
			WithArgs([]string{testProductID}).
			WillReturnRows(pgxmock.NewRows(reviewRowColumns).
				AddRow(testProductID, testUserID, "Ada", 4, "solid", now))

		p, err := NewProductRepository(mock).GetByID(context.Background(), testProductID)
		require.NoError(t, err)
		assert.Equal(t, "Laptop", p.Name)
		require.Len(t, p.Ratings, 1)
		assert.Equal(t, "Ada", p.Ratings[0].UserName)
		assert.Equal(t, 4, p.Ratings[0].Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing product", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM products WHERE id = \$1`).
			WithArgs(testProductID).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewProductRepository(mock).GetByID(context.Background(), testProductID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	q := repository.ProductQuery{
		Filters: []repository.ProductFilter{{Field: repository.FieldPrice, Op: repository.OpLte, Value: 50.0}},
		Page:    2,
		Limit:   1,
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE price <= \$1`).
		WithArgs(50.0).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(50.0, 1, 1).
		WillReturnRows(pgxmock.NewRows(productRowColumns).AddRow(
			testProductID, "Mug", "A ceramic mug", 12.5, "Kitchen", 40, []string{},
			entity.DefaultAverageRating, 0, now, now,
		))
	mock.ExpectQuery(`FROM product_reviews r`).
		WithArgs([]string{testProductID}).
		WillReturnRows(pgxmock.NewRows(reviewRowColumns))

	products, total, err := NewProductRepository(mock).List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Name)
	assert.Empty(t, products[0].Ratings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM products WHERE id = \$1`).
		WithArgs(testProductID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewProductRepository(mock).Delete(context.Background(), testProductID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_AddReview(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "inserts review and recomputes aggregates",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO product_reviews`).
					WithArgs(testProductID, testUserID, 5, "great").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectQuery(`UPDATE products p`).
					WithArgs(testProductID).
					WillReturnRows(pgxmock.NewRows([]string{"num_of_reviews", "average_rating", "updated_at"}).
						AddRow(2, 4.5, now))
				mock.ExpectCommit()
			},
		},
		{
			name: "second review from same user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO product_reviews`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
				mock.ExpectRollback()
			},
			wantErr: repository.ErrDuplicate,
		},
		{
			name: "product deleted meanwhile",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO product_reviews`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
				mock.ExpectRollback()
			},
			wantErr: repository.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			p := &entity.Product{ID: testProductID, AverageRating: 4.0, NumOfReviews: 1}
			err = NewProductRepository(mock).AddReview(context.Background(), p,
				entity.Review{UserID: testUserID, Rating: 5, Comment: "great"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, p.NumOfReviews)
				assert.Equal(t, 4.5, p.AverageRating)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
