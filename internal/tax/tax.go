package tax

import (
	"github.com/shopspring/decimal"
)

// Calculator splits a line's gross amount into its pre-tax price and tax.
// Implementations: InclusiveCalculator, ExclusiveCalculator, NoTaxCalculator
type Calculator interface {
	// Decompose returns the pre-tax price and tax for a line whose amount after
	// discount is gross. ratePercent is a percentage (10 means 10%).
	Decompose(gross, ratePercent decimal.Decimal) Breakdown
}

// Breakdown is the tax decomposition of a single line.
type Breakdown struct {
	PriceBeforeTax decimal.Decimal
	Tax            decimal.Decimal
}

// Total reconstructs the line amount.
func (b Breakdown) Total() decimal.Decimal {
	return b.PriceBeforeTax.Add(b.Tax)
}

var hundred = decimal.NewFromInt(100)

// ForPolicy returns the calculator for a line taxed at ratePercent under the
// store's tax-inclusion setting. Lines without a positive rate are untaxed.
func ForPolicy(priceIncludesTax bool, ratePercent decimal.Decimal) Calculator {
	if !ratePercent.IsPositive() {
		return NewNoTaxCalculator()
	}
	if priceIncludesTax {
		return NewInclusiveCalculator()
	}
	return NewExclusiveCalculator()
}

// Fraction converts a percentage rate to a multiplier (10 -> 0.1).
func Fraction(ratePercent decimal.Decimal) decimal.Decimal {
	return ratePercent.Div(hundred)
}

// ValidateRate rejects negative rates.
func ValidateRate(ratePercent decimal.Decimal) error {
	if ratePercent.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}
