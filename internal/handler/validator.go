package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/pricing"
)

// RequestValidator adapts go-playground/validator to echo.Validator. Field
// failures come back as a single domain.ValidationError keyed by JSON path.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator that understands decimal amounts.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: pricing.NewValidator()}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, "handler.Validate", "failed to validate request")
	}

	var result error
	for _, fe := range verrs {
		result = domain.AddFieldError(result, fieldPath(fe), pricing.FieldMessage(fe))
	}
	return result
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
