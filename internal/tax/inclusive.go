package tax

import (
	"github.com/shopspring/decimal"
)

// InclusiveCalculator handles stores whose listed prices already contain tax.
// The pre-tax price is extracted by division and tax is whatever remains, so
// PriceBeforeTax + Tax always equals the gross amount.
type InclusiveCalculator struct{}

// NewInclusiveCalculator creates a tax-inclusive calculator.
func NewInclusiveCalculator() Calculator {
	return &InclusiveCalculator{}
}

// Decompose extracts round(gross / (1 + rate/100)) as the pre-tax price.
// Zero-rate lines are untaxed.
func (c *InclusiveCalculator) Decompose(gross, ratePercent decimal.Decimal) Breakdown {
	if !ratePercent.IsPositive() {
		return Breakdown{PriceBeforeTax: gross, Tax: decimal.Zero}
	}

	divisor := decimal.NewFromInt(1).Add(Fraction(ratePercent))
	beforeTax := gross.Div(divisor).Round(0)

	return Breakdown{
		PriceBeforeTax: beforeTax,
		Tax:            gross.Sub(beforeTax),
	}
}
