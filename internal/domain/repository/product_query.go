package repository

import "math"

// Operator is a typed comparison allowed in product filters.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// ProductField names a filterable or sortable product attribute.
type ProductField string

const (
	FieldName          ProductField = "name"
	FieldCategory      ProductField = "category"
	FieldPrice         ProductField = "price"
	FieldStock         ProductField = "stock"
	FieldAverageRating ProductField = "averageRating"
	FieldNumOfReviews  ProductField = "numOfReviews"
	FieldCreatedAt     ProductField = "createdAt"
	FieldUpdatedAt     ProductField = "updatedAt"
)

// ProductFilter is one criterion. Value is float64 for price and averageRating,
// int64 for stock and numOfReviews, and string for name and category.
type ProductFilter struct {
	Field ProductField
	Op    Operator
	Value any
}

// SortField orders results by one field.
type SortField struct {
	Field ProductField
	Desc  bool
}

// ProductQuery is a validated listing request. Filters and Search are ANDed.
type ProductQuery struct {
	Filters []ProductFilter
	Search  string
	Sort    []SortField
	Page    int
	Limit   int
}

// Offset is the number of matches skipped before the page starts.
func (q ProductQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}
