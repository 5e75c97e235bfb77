package pricing

import (
	"fmt"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PRICING DOMAIN ERRORS
// =============================================================================

var (
	ErrNegativeDiscount        = &domain.Error{Code: domain.EINVALID, Message: "Discount cannot be negative"}
	ErrDiscountExceedsSubtotal = &domain.Error{Code: domain.EINVALID, Message: "Discount cannot exceed the order total"}
	ErrItemDiscountExceedsLine = &domain.Error{Code: domain.EINVALID, Message: "Item discount cannot exceed the line total"}
)

func discountExceedsSubtotal(op string, discount, total decimal.Decimal) error {
	return &domain.Error{
		Code:    domain.EINVALID,
		Op:      op,
		Message: fmt.Sprintf("Discount %s cannot exceed the order total %s", FormatAmount(discount), FormatAmount(total)),
		Err:     ErrDiscountExceedsSubtotal,
	}
}

func itemDiscountExceedsLine(op string, index int, item LineItem) error {
	return &domain.Error{
		Code: domain.EINVALID,
		Op:   op,
		Message: fmt.Sprintf("Discount %s on item %d (%s) cannot exceed the line total %s",
			FormatAmount(item.Discount), index+1, item.ProductID, FormatAmount(LineGross(item))),
		Err: ErrItemDiscountExceedsLine,
	}
}

func negativeDiscount(op string) error {
	return &domain.Error{
		Code:    domain.EINVALID,
		Op:      op,
		Message: ErrNegativeDiscount.Message,
		Err:     ErrNegativeDiscount,
	}
}
