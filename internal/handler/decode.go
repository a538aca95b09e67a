package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Money and odds compare as numbers; the float is only used for the check.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decode reads a JSON body into dst and runs its validate tags. It writes the
// error response itself and reports whether the handler should go on.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if fields := validateStruct(dst); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}

func validateStruct(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Message: msg})
	}
	return fields
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func pathID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

// timeRange reads from/to (RFC 3339) from the query string. Missing bounds
// default to the window ending now.
func timeRange(r *http.Request, window time.Duration) (time.Time, time.Time, []FieldError) {
	var fields []FieldError
	q := r.URL.Query()

	to := time.Now().UTC()
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "to", Message: "must be RFC 3339"})
		}
		to = t
	}
	from := to.Add(-window)
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "from", Message: "must be RFC 3339"})
		}
		from = t
	}
	if len(fields) == 0 && !to.After(from) {
		fields = append(fields, FieldError{Field: "to", Message: "must be after from"})
	}
	return from, to, fields
}

func pagination(r *http.Request) (int, int, []FieldError) {
	var fields []FieldError
	read := func(name string) int {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: name, Message: "must be a non-negative integer"})
			return 0
		}
		return n
	}
	limit := read("limit")
	offset := read("offset")
	return limit, offset, fields
}
