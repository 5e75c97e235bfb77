package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountFromPercent converts a percentage discount into an amount:
// floor(base × percent / 100), with percent clamped to [0, 100].
func DiscountFromPercent(base, percent decimal.Decimal) decimal.Decimal {
	p := decimal.Min(decimal.Max(percent, decimal.Zero), hundred)
	if !base.IsPositive() || p.IsZero() {
		return decimal.Zero
	}
	amount, _ := base.Mul(p).QuoRem(hundred, 0)
	return amount
}

// PercentOf is the whole percentage that discount represents of base, rounded
// down. A zero base yields 0.
func PercentOf(discount, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !discount.IsPositive() {
		return decimal.Zero
	}
	pct, _ := discount.Mul(hundred).QuoRem(base, 0)
	return pct
}

// ScaleDiscount keeps a line's discount proportional when its quantity changes:
// round(discount × newQty / oldQty). A non-positive oldQty yields 0.
func ScaleDiscount(discount decimal.Decimal, oldQty, newQty int) decimal.Decimal {
	if oldQty <= 0 || newQty <= 0 {
		return decimal.Zero
	}
	return discount.Mul(decimal.NewFromInt(int64(newQty))).
		Div(decimal.NewFromInt(int64(oldQty))).
		Round(0)
}

// ReduceDiscount lowers an order discount by amount without going below 0.
func ReduceDiscount(orderDiscount, amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, orderDiscount.Sub(amount))
}
