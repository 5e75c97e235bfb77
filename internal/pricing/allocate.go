package pricing

import (
	"github.com/dukerupert/tabletill/internal/tax"
	"github.com/shopspring/decimal"
)

// AllocateFromOrderDiscount distributes orderDiscount across items in
// proportion to each line's gross amount and prices every line.
//
// Every line except the last receives floor(discount × line / total). The
// positionally last line receives whatever is left, so the item discounts always
// add up to orderDiscount exactly. The remainder therefore lands on whichever
// line happens to be last, regardless of its size. That includes a last line
// with quantity 0: it still carries its share of the discount, but a zero line
// prices to zero, so that share does not lower Total. Total then exceeds
// GrossTotal minus orderDiscount by the amount parked on that line.
//
// A negative discount, or one larger than the order's gross total, is rejected
// and nothing is allocated; the caller is expected to reset the discount to 0.
func AllocateFromOrderDiscount(items []LineItem, orderDiscount decimal.Decimal, policy TaxPolicy) (Allocation, error) {
	const op = "pricing.allocate"

	if err := ValidateItems(op, items); err != nil {
		return Allocation{}, err
	}
	if orderDiscount.IsNegative() {
		return Allocation{}, negativeDiscount(op)
	}

	total := GrossTotal(items)
	if orderDiscount.GreaterThan(total) {
		return Allocation{}, discountExceedsSubtotal(op, orderDiscount, total)
	}

	a := price(items, distribute(items, orderDiscount, total), policy)
	a.Mode = ModeOrder
	return a, nil
}

// RecomputeOrderFromItems prices the items using the discount each line already
// carries and derives the order discount as their sum. It is the entry point
// for edits made to a single line's discount.
func RecomputeOrderFromItems(items []LineItem, policy TaxPolicy) (Allocation, error) {
	const op = "pricing.recompute"

	if err := ValidateItems(op, items); err != nil {
		return Allocation{}, err
	}

	discounts := make([]decimal.Decimal, len(items))
	for i, item := range items {
		if item.Discount.GreaterThan(LineGross(item)) {
			return Allocation{}, itemDiscountExceedsLine(op, i, item)
		}
		discounts[i] = item.Discount
	}

	a := price(items, discounts, policy)
	a.Mode = ModeItems
	return a, nil
}

// distribute splits orderDiscount across items. total must be GrossTotal(items).
func distribute(items []LineItem, orderDiscount, total decimal.Decimal) []decimal.Decimal {
	discounts := make([]decimal.Decimal, len(items))
	if !orderDiscount.IsPositive() || !total.IsPositive() {
		return discounts
	}

	allocated := decimal.Zero
	last := len(items) - 1
	for i, item := range items {
		if i == last {
			discounts[i] = decimal.Max(decimal.Zero, orderDiscount.Sub(allocated))
			break
		}

		// QuoRem at precision 0 truncates, which is floor for non-negative values.
		share, _ := orderDiscount.Mul(LineGross(item)).QuoRem(total, 0)
		discounts[i] = share
		allocated = allocated.Add(share)
	}
	return discounts
}

// price decomposes every line given its final discount and accumulates the
// order totals from the rounded per-line values.
func price(items []LineItem, discounts []decimal.Decimal, policy TaxPolicy) Allocation {
	a := Allocation{Items: make([]ItemAllocation, 0, len(items))}
	for i, item := range items {
		calc := tax.ForPolicy(policy.PriceIncludesTax, item.TaxRatePercent)
		b := calc.Decompose(discountedGross(item, discounts[i]), item.TaxRatePercent)

		a.Items = append(a.Items, ItemAllocation{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Discount:       discounts[i],
			PriceBeforeTax: b.PriceBeforeTax,
			Tax:            b.Tax,
			Total:          b.Total(),
		})

		a.Discount = a.Discount.Add(discounts[i])
		a.Subtotal = a.Subtotal.Add(b.PriceBeforeTax.Round(0))
		a.Tax = a.Tax.Add(b.Tax.Round(0))
	}
	a.Total = decimal.Max(decimal.Zero, a.Subtotal.Add(a.Tax))

	return a
}

// discountedGross is max(0, unitPrice − discount/quantity) × quantity, written
// as max(0, unitPrice × quantity − discount) to avoid the per-unit division.
// A zero quantity short-circuits to zero.
func discountedGross(item LineItem, discount decimal.Decimal) decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, LineGross(item).Sub(discount))
}
