package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

const userColumns = `id, name, email, password_hash, role,
		address_street, address_city, address_zip, address_country,
		password_reset_token, password_reset_expires, created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &role,
		&u.Address.Street, &u.Address.City, &u.Address.Zip, &u.Address.Country,
		&u.PasswordResetToken, &u.PasswordResetExpires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Role = entity.Role(role)
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role,
			address_street, address_city, address_zip, address_country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, u.Password, string(u.Role),
		u.Address.Street, u.Address.City, u.Address.Zip, u.Address.Country)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > $2
	`, tokenHash, now))
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, role = $4,
			address_street = $5, address_city = $6, address_zip = $7, address_country = $8,
			password_reset_token = $9, password_reset_expires = $10, updated_at = now()
		WHERE id = $11
		RETURNING updated_at
	`, u.Name, u.Email, u.Password, string(u.Role),
		u.Address.Street, u.Address.City, u.Address.Zip, u.Address.Country,
		u.PasswordResetToken, u.PasswordResetExpires, u.ID)

	if err := row.Scan(&u.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return repository.ErrNotFound
		case isUniqueViolation(err):
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id string, tokenHash *string, expires *time.Time) error {
	res, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_reset_token = $1, password_reset_expires = $2, updated_at = now()
		WHERE id = $3
	`, tokenHash, expires, id)
	if err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
