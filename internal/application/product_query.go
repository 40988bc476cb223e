package application

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	repo "github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type valueKind int

const (
	kindString valueKind = iota
	kindFloat
	kindInt
)

// filterable is the allow-list of fields a listing may filter on.
var filterable = map[string]struct {
	field repo.ProductField
	kind  valueKind
}{
	"name":          {repo.FieldName, kindString},
	"category":      {repo.FieldCategory, kindString},
	"price":         {repo.FieldPrice, kindFloat},
	"averageRating": {repo.FieldAverageRating, kindFloat},
	"stock":         {repo.FieldStock, kindInt},
	"numOfReviews":  {repo.FieldNumOfReviews, kindInt},
}

var sortable = map[string]repo.ProductField{
	"name":          repo.FieldName,
	"category":      repo.FieldCategory,
	"price":         repo.FieldPrice,
	"stock":         repo.FieldStock,
	"averageRating": repo.FieldAverageRating,
	"numOfReviews":  repo.FieldNumOfReviews,
	"createdAt":     repo.FieldCreatedAt,
	"updatedAt":     repo.FieldUpdatedAt,
}

var operators = map[string]repo.Operator{
	"eq":  repo.OpEq,
	"gt":  repo.OpGt,
	"gte": repo.OpGte,
	"lt":  repo.OpLt,
	"lte": repo.OpLte,
}

// controlKeys never become filters.
var controlKeys = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true, "search": true}

// ParseProductQuery turns listing query parameters into a validated ProductQuery.
//
// Filters are written as field=value (equality), field[op]=value or field_op=value
// with op one of eq, gt, gte, lt, lte. Only allow-listed fields are accepted and
// values must parse as the field's type. Every problem is reported in one ValidationError.
func ParseProductQuery(values url.Values) (repo.ProductQuery, error) {
	q := repo.ProductQuery{Page: DefaultPage, Limit: DefaultLimit}
	fe := fieldErrors{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if controlKeys[key] {
			continue
		}
		name, opName := splitFilterKey(key)
		def, ok := filterable[name]
		if !ok {
			fe[key] = "is not a filterable field"
			continue
		}
		op, ok := operators[opName]
		if !ok {
			fe[key] = "unsupported operator " + strconv.Quote(opName)
			continue
		}
		if def.kind == kindString && op != repo.OpEq {
			fe[key] = "only supports equality"
			continue
		}
		for _, raw := range values[key] {
			v, msg := parseFilterValue(def.kind, strings.TrimSpace(raw))
			if msg != "" {
				fe[key] = msg
				break
			}
			q.Filters = append(q.Filters, repo.ProductFilter{Field: def.field, Op: op, Value: v})
		}
	}

	q.Search = strings.TrimSpace(values.Get("search"))

	if raw := values.Get("sort"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			desc := strings.HasPrefix(part, "-")
			field, ok := sortable[strings.TrimPrefix(part, "-")]
			if !ok {
				fe["sort"] = "cannot sort by " + strconv.Quote(strings.TrimPrefix(part, "-"))
				break
			}
			q.Sort = append(q.Sort, repo.SortField{Field: field, Desc: desc})
		}
	}
	if len(q.Sort) == 0 {
		q.Sort = []repo.SortField{{Field: repo.FieldCreatedAt, Desc: true}}
	}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fe["page"] = "must be a positive integer"
		} else {
			q.Page = n
		}
	}
	if n, msg := parseLimit(values.Get("limit"), DefaultLimit); msg != "" {
		fe["limit"] = msg
	} else {
		q.Limit = n
	}
	if _, bad := fe["limit"]; !bad && q.Page-1 > math.MaxInt/q.Limit {
		fe["page"] = "is too large"
	}

	if err := fe.err(); err != nil {
		return repo.ProductQuery{}, err
	}
	return q, nil
}

// ParseSearchLimit reads the limit of a full-text search with the same rules
// as a listing. An empty value means the default hit count.
func ParseSearchLimit(raw string) (int, error) {
	n, msg := parseLimit(raw, DefaultSearchHit)
	if msg != "" {
		return 0, fieldErrors{"limit": msg}.err()
	}
	return n, nil
}

func parseLimit(raw string, def int) (int, string) {
	if raw == "" {
		return def, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "must be a positive integer"
	}
	return min(n, MaxLimit), ""
}

// splitFilterKey splits "price[gte]" and "price_gte" into ("price", "gte").
// A bare key is an equality filter.
func splitFilterKey(key string) (field, op string) {
	if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
		return key[:i], key[i+1 : len(key)-1]
	}
	if i := strings.LastIndexByte(key, '_'); i > 0 {
		if _, ok := operators[key[i+1:]]; ok {
			return key[:i], key[i+1:]
		}
	}
	return key, "eq"
}

func parseFilterValue(kind valueKind, raw string) (any, string) {
	switch kind {
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, "must be a number"
		}
		return f, ""
	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "must be an integer"
		}
		return n, ""
	default:
		if raw == "" {
			return nil, "must not be empty"
		}
		return raw, ""
	}
}
