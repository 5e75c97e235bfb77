// Package history records what an order edit changed relative to the order as
// it was loaded, and publishes those records for the order change log.
package history

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action names the kind of edit a Change describes.
type Action string

const (
	ActionAddItem             Action = "add_item"
	ActionRemoveItem          Action = "remove_item"
	ActionUpdateQuantity      Action = "update_quantity"
	ActionUpdateDiscount      Action = "update_discount"
	ActionUpdateOrderDiscount Action = "update_order_discount"
)

// Change is one before/after delta on an order.
type Change struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     string          `json:"orderId"`
	Action      Action          `json:"action"`
	ProductID   string          `json:"productId,omitempty"`
	ProductName string          `json:"productName,omitempty"`
	OldQuantity int             `json:"oldQuantity"`
	NewQuantity int             `json:"newQuantity"`
	OldDiscount decimal.Decimal `json:"oldDiscount"`
	NewDiscount decimal.Decimal `json:"newDiscount"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Note        string          `json:"note,omitempty"`
	ChangedAt   time.Time       `json:"changedAt"`
}

// New stamps a change with a fresh id and the current time.
func New(orderID string, action Action) Change {
	return Change{
		ID:        uuid.New(),
		OrderID:   orderID,
		Action:    action,
		ChangedAt: time.Now().UTC(),
	}
}

var notes = map[Action]string{
	ActionAddItem:             "Item added to order",
	ActionRemoveItem:          "Item removed from order",
	ActionUpdateQuantity:      "Item quantity updated",
	ActionUpdateDiscount:      "Item discount updated",
	ActionUpdateOrderDiscount: "Order discount updated",
}

// Description renders the detailed description stored with a change-log entry.
// Only the keys relevant to the action are present.
func (c Change) Description() string {
	fields := map[string]any{}
	if c.ProductName != "" {
		fields["productName"] = c.ProductName
	}

	switch c.Action {
	case ActionUpdateQuantity:
		fields["oldQuantity"] = c.OldQuantity
		fields["newQuantity"] = c.NewQuantity
		fields["unitPrice"] = amount(c.UnitPrice)
	case ActionUpdateDiscount, ActionUpdateOrderDiscount:
		fields["oldDiscount"] = amount(c.OldDiscount)
		fields["newDiscount"] = amount(c.NewDiscount)
		if c.Action == ActionUpdateDiscount {
			fields["quantity"] = c.Quantity
			fields["unitPrice"] = amount(c.UnitPrice)
		}
	case ActionAddItem, ActionRemoveItem:
		fields["quantity"] = c.Quantity
		fields["unitPrice"] = amount(c.UnitPrice)
	}

	note := c.Note
	if note == "" {
		note = notes[c.Action]
	}
	if note != "" {
		fields["note"] = note
	}

	// A map of strings, ints and json.Numbers always marshals.
	b, _ := json.Marshal(fields)
	return string(b)
}

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.Round(0).StringFixed(0))
}
