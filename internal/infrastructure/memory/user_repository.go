package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

// UserRepository keeps users in process memory. Safe for concurrent use.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entity.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    map[string]*entity.User{},
		byEmail: map[string]string{},
		now:     time.Now,
	}
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[u.Email]; taken {
		return repository.ErrDuplicate
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt
	r.byID[u.ID] = cloneUser(u)
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.PasswordResetToken == nil || u.PasswordResetExpires == nil {
			continue
		}
		if *u.PasswordResetToken == tokenHash && u.PasswordResetExpires.After(now) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if old.Email != u.Email {
		if _, taken := r.byEmail[u.Email]; taken {
			return repository.ErrDuplicate
		}
		delete(r.byEmail, old.Email)
		r.byEmail[u.Email] = u.ID
	}
	u.UpdatedAt = r.now()
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) SetPasswordReset(_ context.Context, id string, tokenHash *string, expires *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetToken = copyPtr(tokenHash)
	u.PasswordResetExpires = copyPtr(expires)
	return nil
}

// Names resolves user ids to display names; unknown ids are skipped.
func (r *UserRepository) Names(ids []string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			out[id] = u.Name
		}
	}
	return out
}

func cloneUser(u *entity.User) *entity.User {
	cp := *u
	cp.PasswordResetToken = copyPtr(u.PasswordResetToken)
	cp.PasswordResetExpires = copyPtr(u.PasswordResetExpires)
	return &cp
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ repository.UserRepository = (*UserRepository)(nil)
