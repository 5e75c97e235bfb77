package pricing

import "github.com/shopspring/decimal"

// ItemPayload is the per-line shape the order API accepts. Amounts are whole
// currency units encoded as decimal strings.
type ItemPayload struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPrice      string `json:"unitPrice"`
	Discount       string `json:"discount"`
	Tax            string `json:"tax"`
	PriceBeforeTax string `json:"priceBeforeTax"`
	Total          string `json:"total"`
}

// TotalsPayload is the order-level shape the order API accepts.
type TotalsPayload struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

// OrderPayload bundles the order totals with its lines.
type OrderPayload struct {
	TotalsPayload
	Items []ItemPayload `json:"items"`
}

// FormatAmount rounds d to a whole currency unit and renders it without
// fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}

// Payload encodes an allocation for the order API.
func Payload(a Allocation) OrderPayload {
	p := OrderPayload{
		TotalsPayload: Totals(a),
		Items:         make([]ItemPayload, 0, len(a.Items)),
	}
	for _, item := range a.Items {
		p.Items = append(p.Items, EncodeItem(item))
	}
	return p
}

// Totals encodes only the order-level figures.
func Totals(a Allocation) TotalsPayload {
	return TotalsPayload{
		Subtotal: FormatAmount(a.Subtotal),
		Tax:      FormatAmount(a.Tax),
		Discount: FormatAmount(a.Discount),
		Total:    FormatAmount(a.Total),
	}
}

// EncodeItem encodes one priced line.
func EncodeItem(item ItemAllocation) ItemPayload {
	return ItemPayload{
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		UnitPrice:      FormatAmount(item.UnitPrice),
		Discount:       FormatAmount(item.Discount),
		Tax:            FormatAmount(item.Tax),
		PriceBeforeTax: FormatAmount(item.PriceBeforeTax),
		Total:          FormatAmount(item.Total),
	}
}
