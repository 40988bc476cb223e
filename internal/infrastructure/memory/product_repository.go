package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

// NameResolver maps reviewer ids to display names.
type NameResolver interface {
	Names(ids []string) map[string]string
}

type storedProduct struct {
	seq int64
	p   *entity.Product
}

// ProductRepository keeps products in process memory. Safe for concurrent use;
// AddReview holds the write lock across the duplicate check and the append.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[string]*storedProduct
	seq   int64
	names NameResolver
	now   func() time.Time
}

func NewProductRepository(names NameResolver) *ProductRepository {
	return &ProductRepository{
		items: map[string]*storedProduct{},
		names: names,
		now:   time.Now,
	}
}

func (r *ProductRepository) Create(_ context.Context, p *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.ID = uuid.NewString()
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	p.NumOfReviews = len(p.Ratings)
	r.items[p.ID] = &storedProduct{seq: r.seq, p: cloneProduct(p)}
	return nil
}

func (r *ProductRepository) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withNames(cloneProduct(sp.p)), nil
}

func (r *ProductRepository) Update(_ context.Context, p *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.items[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := cloneProduct(p)
	// reviews are only written through AddReview
	next.Ratings = sp.p.Ratings
	next.NumOfReviews = sp.p.NumOfReviews
	next.AverageRating = sp.p.AverageRating
	next.CreatedAt = sp.p.CreatedAt
	next.UpdatedAt = r.now()
	sp.p = next
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *ProductRepository) AddReview(_ context.Context, p *entity.Product, rv entity.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.items[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := cloneProduct(sp.p)
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = r.now()
	}
	if err := stored.AddReview(rv); err != nil {
		return repository.ErrDuplicate
	}
	stored.UpdatedAt = r.now()
	sp.p = stored
	p.NumOfReviews = stored.NumOfReviews
	p.AverageRating = stored.AverageRating
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ProductRepository) List(_ context.Context, q repository.ProductQuery) ([]*entity.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*storedProduct, 0, len(r.items))
	for _, sp := range r.items {
		if matchesQuery(sp.p, q) {
			matches = append(matches, sp)
		}
	}
	total := int64(len(matches))

	sortStored(matches, q.Sort)

	start := min(max(q.Offset(), 0), len(matches))
	end := len(matches)
	if q.Limit > 0 && q.Limit < end-start {
		end = start + q.Limit
	}
	out := make([]*entity.Product, 0, end-start)
	for _, sp := range matches[start:end] {
		out = append(out, r.withNames(cloneProduct(sp.p)))
	}
	return out, total, nil
}

func (r *ProductRepository) withNames(p *entity.Product) *entity.Product {
	if r.names == nil || len(p.Ratings) == 0 {
		return p
	}
	ids := make([]string, 0, len(p.Ratings))
	for _, rv := range p.Ratings {
		ids = append(ids, rv.UserID)
	}
	names := r.names.Names(ids)
	for i := range p.Ratings {
		p.Ratings[i].UserName = names[p.Ratings[i].UserID]
	}
	return p
}

func matchesQuery(p *entity.Product, q repository.ProductQuery) bool {
	for _, f := range q.Filters {
		if !matchesFilter(p, f) {
			return false
		}
	}
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Description), term) {
			return false
		}
	}
	return true
}

func matchesFilter(p *entity.Product, f repository.ProductFilter) bool {
	if s, ok := f.Value.(string); ok {
		return f.Op == repository.OpEq && stringField(p, f.Field) == s
	}
	var want float64
	switch v := f.Value.(type) {
	case float64:
		want = v
	case int64:
		want = float64(v)
	default:
		return false
	}
	got := numericField(p, f.Field)
	switch f.Op {
	case repository.OpEq:
		return got == want
	case repository.OpGt:
		return got > want
	case repository.OpGte:
		return got >= want
	case repository.OpLt:
		return got < want
	case repository.OpLte:
		return got <= want
	}
	return false
}

func stringField(p *entity.Product, f repository.ProductField) string {
	switch f {
	case repository.FieldName:
		return p.Name
	case repository.FieldCategory:
		return p.Category
	}
	return ""
}

func numericField(p *entity.Product, f repository.ProductField) float64 {
	switch f {
	case repository.FieldPrice:
		return p.Price
	case repository.FieldStock:
		return float64(p.Stock)
	case repository.FieldAverageRating:
		return p.AverageRating
	case repository.FieldNumOfReviews:
		return float64(p.NumOfReviews)
	case repository.FieldCreatedAt:
		return float64(p.CreatedAt.UnixNano())
	case repository.FieldUpdatedAt:
		return float64(p.UpdatedAt.UnixNano())
	}
	return 0
}

// compareField returns -1, 0 or 1.
func compareField(a, b *entity.Product, f repository.ProductField) int {
	switch f {
	case repository.FieldName, repository.FieldCategory:
		return strings.Compare(stringField(a, f), stringField(b, f))
	case repository.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case repository.FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	x, y := numericField(a, f), numericField(b, f)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func sortStored(items []*storedProduct, keys []repository.SortField) {
	if len(keys) == 0 {
		keys = []repository.SortField{{Field: repository.FieldCreatedAt, Desc: true}}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range keys {
			c := compareField(items[i].p, items[j].p, k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		if keys[0].Desc {
			return items[i].seq > items[j].seq
		}
		return items[i].seq < items[j].seq
	})
}

func cloneProduct(p *entity.Product) *entity.Product {
	cp := *p
	cp.Images = append([]string{}, p.Images...)
	cp.Ratings = append([]entity.Review{}, p.Ratings...)
	return &cp
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
