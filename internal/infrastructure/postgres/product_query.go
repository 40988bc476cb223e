package postgres

import (
	"fmt"
	"strings"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

var productColumnFor = map[repository.ProductField]string{
	repository.FieldName:          "name",
	repository.FieldCategory:      "category",
	repository.FieldPrice:         "price",
	repository.FieldStock:         "stock",
	repository.FieldAverageRating: "average_rating",
	repository.FieldNumOfReviews:  "num_of_reviews",
	repository.FieldCreatedAt:     "created_at",
	repository.FieldUpdatedAt:     "updated_at",
}

var sqlOperatorFor = map[repository.Operator]string{
	repository.OpEq:  "=",
	repository.OpGt:  ">",
	repository.OpGte: ">=",
	repository.OpLt:  "<",
	repository.OpLte: "<=",
}

// buildProductWhere renders the filters and search term as a WHERE clause with
// positional arguments. Only allow-listed columns and operators reach the SQL text.
func buildProductWhere(q repository.ProductQuery) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, f := range q.Filters {
		col, ok := productColumnFor[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", f.Field)
		}
		op, ok := sqlOperatorFor[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		args = append(args, f.Value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, op, len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// buildProductOrder defaults to newest first; id breaks ties so pages are stable.
func buildProductOrder(sort []repository.SortField) (string, error) {
	if len(sort) == 0 {
		return " ORDER BY created_at DESC, id DESC", nil
	}
	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		col, ok := productColumnFor[s.Field]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if sort[0].Desc {
		parts = append(parts, "id DESC")
	} else {
		parts = append(parts, "id ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
