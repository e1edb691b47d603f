// Package validation configures go-playground/validator for request and use case input.
package validation

import (
	"reflect"
	"strings"

	"stockdash/internal/errors"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reports fields by their json names.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// Details renders a validation failure as "field: rule" pairs without echoing the
// rejected values, which may be passwords.
func Details(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid input"
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if field == "" {
			field = fe.StructField()
		}
		parts = append(parts, field+": "+fe.Tag())
	}

	return strings.Join(parts, ", ")
}
