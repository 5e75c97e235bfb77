package tax

import "github.com/shopspring/decimal"

// NoTaxCalculator returns zero tax for every line.
// Used for zero-rate lines.
type NoTaxCalculator struct{}

// NewNoTaxCalculator creates a new no-tax calculator.
func NewNoTaxCalculator() Calculator {
	return &NoTaxCalculator{}
}

// Decompose always returns the gross amount untaxed.
func (c *NoTaxCalculator) Decompose(gross, ratePercent decimal.Decimal) Breakdown {
	return Breakdown{PriceBeforeTax: gross, Tax: decimal.Zero}
}
