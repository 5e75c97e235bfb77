package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/posapi"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/service"
)

// Job type constants for order jobs
const (
	JobTypePersistOrderPricing = "persist_order_pricing"
	JobTypePublishOrderChanges = "publish_order_changes"
)

// Queue names
const (
	QueueOrders  = "orders"
	QueueHistory = "history"
)

// OrderAPI is the part of the order API the persist job writes to.
type OrderAPI interface {
	UpdateOrderItem(ctx context.Context, itemID string, item posapi.ItemUpdate) error
	DeleteOrderItem(ctx context.Context, itemID string) error
	AddOrderItems(ctx context.Context, orderID string, items []pricing.ItemPayload) error
	UpdateOrder(ctx context.Context, orderID string, totals pricing.TotalsPayload) error
	CreateOrder(ctx context.Context, order pricing.OrderPayload) (*posapi.Order, error)
}

// PersistOrderPricingPayload is a committed order to write back to the order
// API. Stages that already succeeded are cleared from the payload so that a
// retry does not repeat them.
type PersistOrderPricingPayload struct {
	OrderID  string                `json:"order_id,omitempty"`
	Totals   pricing.TotalsPayload `json:"totals"`
	Updates  []service.ItemUpdate  `json:"updates,omitempty"`
	NewItems []pricing.ItemPayload `json:"new_items,omitempty"`
	Removed  []string              `json:"removed,omitempty"`
	Changes  []history.Change      `json:"changes,omitempty"`
}

// PublishOrderChangesPayload carries change records for the order change log.
type PublishOrderChangesPayload struct {
	OrderID string           `json:"order_id"`
	Changes []history.Change `json:"changes"`
}

// PersistResult summarizes what a persist job wrote.
type PersistResult struct {
	OrderID      string `json:"order_id"`
	Created      bool   `json:"created"`
	ItemsAdded   int    `json:"items_added"`
	ItemsUpdated int    `json:"items_updated"`
	ItemsRemoved int    `json:"items_removed"`
}

// EnqueuePersistOrderPricing enqueues a job that writes a committed order to
// the order API.
func EnqueuePersistOrderPricing(ctx context.Context, q Enqueuer, req *service.CommitRequest) error {
	payloadJSON, err := json.Marshal(PersistOrderPricingPayload{
		OrderID:  req.OrderID,
		Totals:   req.Totals,
		Updates:  req.Updates,
		NewItems: req.NewItems,
		Removed:  req.Removed,
		Changes:  req.Changes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, EnqueueJobParams{
		JobType:        JobTypePersistOrderPricing,
		Queue:          QueueOrders,
		Payload:        payloadJSON,
		MaxRetries:     5,
		TimeoutSeconds: 30,
	})
	return err
}

// EnqueuePublishOrderChanges enqueues a job that publishes change records.
func EnqueuePublishOrderChanges(ctx context.Context, q Enqueuer, orderID string, changes []history.Change) error {
	if len(changes) == 0 {
		return nil
	}

	payloadJSON, err := json.Marshal(PublishOrderChangesPayload{OrderID: orderID, Changes: changes})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, EnqueueJobParams{
		JobType:        JobTypePublishOrderChanges,
		Queue:          QueueHistory,
		Payload:        payloadJSON,
		MaxRetries:     3,
		TimeoutSeconds: 10,
	})
	return err
}

// ProcessPersistJob writes a committed order to the order API: removed items
// are deleted, existing items updated, new items added and finally the order
// totals written. A new order is created in one call instead. On success the
// order's change records are handed to a publish job.
func ProcessPersistJob(ctx context.Context, job *Job, api OrderAPI, q Enqueuer) (*PersistResult, error) {
	var payload PersistOrderPricingPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, Permanent(fmt.Errorf("failed to unmarshal persist payload: %w", err))
	}

	result := &PersistResult{OrderID: payload.OrderID}

	if payload.OrderID == "" {
		order, err := api.CreateOrder(ctx, pricing.OrderPayload{TotalsPayload: payload.Totals, Items: payload.NewItems})
		if err != nil {
			return nil, classify(fmt.Errorf("failed to create order: %w", err))
		}
		payload.OrderID = string(order.ID)
		result.OrderID = payload.OrderID
		result.Created = true
		result.ItemsAdded = len(payload.NewItems)
		payload.NewItems = nil
		checkpoint(job, payload)
	} else {
		for len(payload.Removed) > 0 {
			id := payload.Removed[0]
			if err := api.DeleteOrderItem(ctx, id); err != nil && !posapi.IsNotFound(err) {
				return nil, classify(fmt.Errorf("failed to delete order item %s: %w", id, err))
			}
			payload.Removed = payload.Removed[1:]
			result.ItemsRemoved++
			checkpoint(job, payload)
		}

		for _, u := range payload.Updates {
			if err := api.UpdateOrderItem(ctx, u.ItemID, posapi.NewItemUpdate(u.ItemPayload)); err != nil {
				return nil, classify(fmt.Errorf("failed to update order item %s: %w", u.ItemID, err))
			}
			result.ItemsUpdated++
		}

		if len(payload.NewItems) > 0 {
			if err := api.AddOrderItems(ctx, payload.OrderID, payload.NewItems); err != nil {
				return nil, classify(fmt.Errorf("failed to add order items: %w", err))
			}
			result.ItemsAdded = len(payload.NewItems)
			payload.NewItems = nil
			checkpoint(job, payload)
		}

		if err := api.UpdateOrder(ctx, payload.OrderID, payload.Totals); err != nil {
			return nil, classify(fmt.Errorf("failed to update order totals: %w", err))
		}
	}

	if len(payload.Changes) > 0 {
		for i := range payload.Changes {
			payload.Changes[i].OrderID = payload.OrderID
		}
		if err := EnqueuePublishOrderChanges(ctx, q, payload.OrderID, payload.Changes); err != nil {
			return result, fmt.Errorf("order saved but change history not queued: %w", err)
		}
		payload.Changes = nil
		checkpoint(job, payload)
	}

	return result, nil
}

// ProcessHistoryJob publishes change records and returns the ones published.
func ProcessHistoryJob(ctx context.Context, job *Job, pub history.Publisher) ([]history.Change, error) {
	var payload PublishOrderChangesPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, Permanent(fmt.Errorf("failed to unmarshal history payload: %w", err))
	}

	if err := pub.Publish(ctx, payload.Changes); err != nil {
		return nil, fmt.Errorf("failed to publish %d changes for order %s: %w", len(payload.Changes), payload.OrderID, err)
	}
	return payload.Changes, nil
}

// checkpoint stores the remaining work back on the job.
func checkpoint(job *Job, payload PersistOrderPricingPayload) {
	if b, err := json.Marshal(payload); err == nil {
		job.Payload = b
	}
}

// classify marks order API rejections as permanent.
func classify(err error) error {
	if posapi.IsRetryable(err) {
		return err
	}
	return Permanent(err)
}
