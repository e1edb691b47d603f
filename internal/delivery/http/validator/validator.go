// Package validator adapts go-playground/validator to echo.Validator.
package validator

import (
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/infra/validation"

	"github.com/go-playground/validator/v10"
)

// CustomValidator validates bound request bodies.
type CustomValidator struct {
	validate *validator.Validate
}

// New creates the echo validator.
func New() *CustomValidator {
	return &CustomValidator{validate: validation.New()}
}

// Validate reports struct tag violations as ErrValidationFailed.
func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validate.Struct(i); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails(validation.Details(err))
	}

	return nil
}
