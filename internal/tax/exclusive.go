package tax

import (
	"github.com/shopspring/decimal"
)

// ExclusiveCalculator adds tax on top of the listed price.
type ExclusiveCalculator struct{}

// NewExclusiveCalculator creates a tax-exclusive calculator.
func NewExclusiveCalculator() Calculator {
	return &ExclusiveCalculator{}
}

// Decompose treats gross as the pre-tax price and rounds the tax to a whole
// currency unit.
func (c *ExclusiveCalculator) Decompose(gross, ratePercent decimal.Decimal) Breakdown {
	if !ratePercent.IsPositive() {
		return Breakdown{PriceBeforeTax: gross, Tax: decimal.Zero}
	}

	return Breakdown{
		PriceBeforeTax: gross,
		Tax:            gross.Mul(Fraction(ratePercent)).Round(0),
	}
}
