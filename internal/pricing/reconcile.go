package pricing

import "github.com/shopspring/decimal"

// Tolerance is the largest gap between the order discount and the sum of item
// discounts that still counts as consistent.
var Tolerance = decimal.New(1, -2)

// Diverged reports whether orderDiscount and the item discounts disagree by
// Tolerance or more.
func Diverged(orderDiscount decimal.Decimal, items []LineItem) bool {
	return orderDiscount.Sub(SumDiscounts(items)).Abs().GreaterThanOrEqual(Tolerance)
}

// Reconcile must run before totals are displayed and before an order is
// committed. When the order discount no longer matches the item discounts it
// is redistributed with AllocateFromOrderDiscount; otherwise the item discounts
// stand and RecomputeOrderFromItems prices the order.
func Reconcile(items []LineItem, orderDiscount decimal.Decimal, policy TaxPolicy) (Allocation, error) {
	if Diverged(orderDiscount, items) {
		return AllocateFromOrderDiscount(items, orderDiscount, policy)
	}
	return RecomputeOrderFromItems(items, policy)
}
