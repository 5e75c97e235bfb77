// Package pricing distributes an order-level discount across line items and
// decomposes every line into its pre-tax price, tax and total.
//
// There are two entry points and callers must pick one explicitly:
// AllocateFromOrderDiscount when the order discount was edited (order to items),
// and RecomputeOrderFromItems when a single line's discount was edited
// (items to order). Reconcile chooses between them by checking whether the two
// representations have drifted apart.
//
// Every function here is pure: inputs are never modified and identical inputs
// always produce identical outputs.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Mode records which entry point produced an Allocation.
type Mode string

const (
	// ModeOrder means the order discount was authoritative and was distributed.
	ModeOrder Mode = "order"
	// ModeItems means the item discounts were authoritative and were summed.
	ModeItems Mode = "items"
)

// LineItem is one product line of an order. Persisted and newly added lines are
// priced the same way.
type LineItem struct {
	ProductID      string          `json:"productId" validate:"required"`
	Name           string          `json:"name,omitempty"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	TaxRatePercent decimal.Decimal `json:"taxRate"`
	// Discount is the discount already assigned to this line. It is only read by
	// RecomputeOrderFromItems and the reconciliation check.
	Discount decimal.Decimal `json:"discount" validate:"gte=0"`
}

// TaxPolicy is the store-wide tax setting.
type TaxPolicy struct {
	PriceIncludesTax bool `json:"priceIncludesTax"`
}

// ItemAllocation is the priced result for one line, in input order.
type ItemAllocation struct {
	ProductID      string          `json:"productId"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Discount       decimal.Decimal `json:"discount"`
	PriceBeforeTax decimal.Decimal `json:"priceBeforeTax"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// Allocation is the reconciled pricing of a whole order.
type Allocation struct {
	Mode     Mode             `json:"mode"`
	Items    []ItemAllocation `json:"items"`
	Discount decimal.Decimal  `json:"discount"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Tax      decimal.Decimal  `json:"tax"`
	Total    decimal.Decimal  `json:"total"`
}

// LineGross is unitPrice × quantity, before any discount.
func LineGross(item LineItem) decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// GrossTotal sums LineGross over all items.
func GrossTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineGross(item))
	}
	return total
}

// SumDiscounts adds up the discounts currently carried by the items.
func SumDiscounts(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Discount)
	}
	return sum
}
