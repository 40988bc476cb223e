package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once   sync.Once
	engine *validator.Validate
)

// Init configures the global validator used by Gin's binding and by Struct/StructPartial.
// - Uses JSON tag names in errors.
// - Registers alias tags for common validations.
func Init() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterAlias("pwd", "min=6")
		v.RegisterAlias("role", "oneof=customer admin")
		engine = v
	})
}

// Engine returns the shared validator instance.
func Engine() *validator.Validate {
	Init()
	return engine
}

// Struct validates every field of s.
func Struct(s any) error {
	return Engine().Struct(s)
}

// StructPartial validates only the named fields of s. Field names are Go struct
// field names; nested fields use dotted paths (e.g. "Address.City").
func StructPartial(s any, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return Engine().StructPartial(s, fields...)
}

// StructExcept validates every field of s except the named ones.
func StructExcept(s any, fields ...string) error {
	return Engine().StructExcept(s, fields...)
}

// Var validates a single value against tag and reports the first failure under name.
// Returns nil when the value is valid.
func Var(name string, value any, tag string) map[string]string {
	err := Engine().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return map[string]string{name: formatFieldError(verrs[0])}
	}
	return map[string]string{name: "is invalid"}
}

// ToDetails converts validation/binding errors into a map[field]message suitable for API error.details.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	// Invalid JSON payloads
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		if ute.Field != "" {
			return map[string]string{ute.Field: "must be a valid " + ute.Type.String()}
		}
		return map[string]string{"payload": "invalid json"}
	}
	if errors.As(err, &se) {
		return map[string]string{"payload": "invalid json"}
	}

	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return map[string]string{"payload": "invalid number " + strconv.Quote(ne.Num)}
	}

	// Validation errors from validator.v10
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fieldPath(fe)] = formatFieldError(fe)
		}
		return out
	}

	// Fallback
	return map[string]string{"payload": "invalid payload"}
}

// fieldPath drops the root struct name from the namespace: "Product.ratings[0].rating" -> "ratings[0].rating".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func formatFieldError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()
	kind := fe.Kind()

	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", param)
	case "min":
		if isNumberKind(kind) {
			return "must be at least " + param
		}
		if kind == reflect.Slice {
			return "must contain at least " + param + " items"
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(kind) {
			return "must be at most " + param
		}
		if kind == reflect.Slice {
			return "must contain at most " + param + " items"
		}
		return "must be at most " + param + " characters long"
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be greater than or equal to " + param
	case "lt":
		return "must be less than " + param
	case "lte":
		return "must be less than or equal to " + param
	case "numeric", "number":
		return "must be numeric"
	case "pwd":
		return "must be at least 6 characters long"
	case "role":
		return "must be one of: customer, admin"
	default:
		if param != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", tag, param)
		}
		return fmt.Sprintf("validation failed for '%s'", tag)
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
