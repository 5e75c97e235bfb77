package pricing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/tax"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = NewValidator()

// NewValidator returns a validator that understands decimal.Decimal fields and
// reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// ValidateItems checks every line and collects all field failures into a single
// domain.ValidationError keyed as items[i].field. Tax rates are checked by the
// tax package.
func ValidateItems(op string, items []LineItem) error {
	var result error
	for i, item := range items {
		if err := tax.ValidateRate(item.TaxRatePercent); err != nil {
			var terr *tax.TaxError
			if errors.As(err, &terr) {
				result = domain.AddFieldError(result, fmt.Sprintf("items[%d].taxRate", i), terr.ErrorMessage())
			}
		}

		err := validate.Struct(item)
		if err == nil {
			continue
		}

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.Internal(err, op, "failed to validate line items")
		}
		for _, fe := range verrs {
			result = domain.AddFieldError(result, fmt.Sprintf("items[%d].%s", i, fe.Field()), FieldMessage(fe))
		}
	}

	if result != nil {
		var ve *domain.ValidationError
		if errors.As(result, &ve) {
			ve.Op = op
		}
	}
	return result
}

// FieldMessage renders a validator failure as a user-facing message.
func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
