package service

import (
	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/pricing"
)

// ItemUpdate is the new state of a line that already exists in the order API.
type ItemUpdate struct {
	ItemID string `json:"itemId"`
	pricing.ItemPayload
}

// CommitRequest is a reconciled order ready to be written back to the order
// API, along with the change records describing the edit.
type CommitRequest struct {
	OrderID    string                `json:"orderId,omitempty"`
	Allocation pricing.Allocation    `json:"allocation"`
	Totals     pricing.TotalsPayload `json:"totals"`
	Updates    []ItemUpdate          `json:"updates"`
	NewItems   []pricing.ItemPayload `json:"newItems"`
	Removed    []string              `json:"removed"`
	Changes    []history.Change      `json:"changes"`
}

// IsNew reports whether the order has to be created rather than updated.
func (r *CommitRequest) IsNew() bool {
	return r.OrderID == ""
}

// Order returns the full payload used when creating a new order.
func (r *CommitRequest) Order() pricing.OrderPayload {
	return pricing.Payload(r.Allocation)
}

func newCommitRequest(orderID string, items, removed []EditorItem, a pricing.Allocation) *CommitRequest {
	req := &CommitRequest{
		OrderID:    orderID,
		Allocation: a,
		Totals:     pricing.Totals(a),
		Updates:    []ItemUpdate{},
		NewItems:   []pricing.ItemPayload{},
		Removed:    []string{},
	}

	for i, item := range items {
		payload := pricing.EncodeItem(a.Items[i])
		if item.Persisted() {
			req.Updates = append(req.Updates, ItemUpdate{ItemID: item.ID, ItemPayload: payload})
		} else {
			req.NewItems = append(req.NewItems, payload)
		}
	}
	for _, item := range removed {
		req.Removed = append(req.Removed, item.ID)
	}
	return req
}
