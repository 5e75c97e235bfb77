package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/posapi"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOrderAPI records calls and fails the ones configured to fail.
type mockOrderAPI struct {
	calls []string

	UpdateOrderItemErr error
	DeleteOrderItemErr error
	AddOrderItemsErr   error
	UpdateOrderErr     error
	CreateOrderErr     error
	CreatedID          posapi.ID
}

func (m *mockOrderAPI) UpdateOrderItem(ctx context.Context, itemID string, item posapi.ItemUpdate) error {
	m.calls = append(m.calls, "update_item:"+itemID)
	return m.UpdateOrderItemErr
}

func (m *mockOrderAPI) DeleteOrderItem(ctx context.Context, itemID string) error {
	m.calls = append(m.calls, "delete_item:"+itemID)
	return m.DeleteOrderItemErr
}

func (m *mockOrderAPI) AddOrderItems(ctx context.Context, orderID string, items []pricing.ItemPayload) error {
	m.calls = append(m.calls, "add_items:"+orderID)
	return m.AddOrderItemsErr
}

func (m *mockOrderAPI) UpdateOrder(ctx context.Context, orderID string, totals pricing.TotalsPayload) error {
	m.calls = append(m.calls, "update_order:"+orderID)
	return m.UpdateOrderErr
}

func (m *mockOrderAPI) CreateOrder(ctx context.Context, order pricing.OrderPayload) (*posapi.Order, error) {
	m.calls = append(m.calls, "create_order")
	if m.CreateOrderErr != nil {
		return nil, m.CreateOrderErr
	}
	return &posapi.Order{ID: m.CreatedID}, nil
}

// mockEnqueuer keeps enqueued jobs in memory.
type mockEnqueuer struct {
	jobs []EnqueueJobParams
	err  error
}

func (m *mockEnqueuer) EnqueueJob(ctx context.Context, params EnqueueJobParams) (*Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.jobs = append(m.jobs, params)
	return &Job{JobType: params.JobType, Payload: params.Payload}, nil
}

func commitRequest(orderID string) *service.CommitRequest {
	return &service.CommitRequest{
		OrderID: orderID,
		Totals:  pricing.TotalsPayload{Subtotal: "52500", Tax: "0", Discount: "7500", Total: "52500"},
		Updates: []service.ItemUpdate{
			{ItemID: "b1", ItemPayload: pricing.ItemPayload{ProductID: "bun-cha", Quantity: 1, Discount: "7500"}},
		},
		NewItems: []pricing.ItemPayload{{ProductID: "tra-da", Quantity: 1, Discount: "0"}},
		Removed:  []string{"a1"},
		Changes: []history.Change{
			history.New(orderID, history.ActionRemoveItem),
			history.New(orderID, history.ActionAddItem),
		},
	}
}

func persistJob(t *testing.T, req *service.CommitRequest) *Job {
	t.Helper()
	q := &mockEnqueuer{}
	require.NoError(t, NewDispatcher(q).EnqueueCommit(context.Background(), req))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, JobTypePersistOrderPricing, q.jobs[0].JobType)
	assert.Equal(t, QueueOrders, q.jobs[0].Queue)
	return &Job{JobType: q.jobs[0].JobType, Payload: q.jobs[0].Payload, MaxRetries: q.jobs[0].MaxRetries}
}

func TestProcessPersistJob_ExistingOrder(t *testing.T) {
	job := persistJob(t, commitRequest("order-1"))
	api := &mockOrderAPI{}
	q := &mockEnqueuer{}

	result, err := ProcessPersistJob(context.Background(), job, api, q)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"delete_item:a1",
		"update_item:b1",
		"add_items:order-1",
		"update_order:order-1",
	}, api.calls)
	assert.Equal(t, &PersistResult{OrderID: "order-1", ItemsAdded: 1, ItemsUpdated: 1, ItemsRemoved: 1}, result)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, JobTypePublishOrderChanges, q.jobs[0].JobType)
	var published PublishOrderChangesPayload
	require.NoError(t, json.Unmarshal(q.jobs[0].Payload, &published))
	assert.Equal(t, "order-1", published.OrderID)
	assert.Len(t, published.Changes, 2)
}

func TestProcessPersistJob_NewOrder(t *testing.T) {
	req := commitRequest("")
	req.Updates = nil
	req.Removed = nil
	job := persistJob(t, req)
	api := &mockOrderAPI{CreatedID: "105"}
	q := &mockEnqueuer{}

	result, err := ProcessPersistJob(context.Background(), job, api, q)

	require.NoError(t, err)
	assert.Equal(t, []string{"create_order"}, api.calls)
	assert.True(t, result.Created)
	assert.Equal(t, "105", result.OrderID)

	var published PublishOrderChangesPayload
	require.NoError(t, json.Unmarshal(q.jobs[0].Payload, &published))
	assert.Equal(t, "105", published.OrderID)
	for _, c := range published.Changes {
		assert.Equal(t, "105", c.OrderID, "change records pick up the created order id")
	}
}

func TestProcessPersistJob_RetryResumes(t *testing.T) {
	job := persistJob(t, commitRequest("order-1"))
	api := &mockOrderAPI{UpdateOrderErr: &posapi.APIError{StatusCode: 503}}
	q := &mockEnqueuer{}

	_, err := ProcessPersistJob(context.Background(), job, api, q)

	require.Error(t, err)
	assert.False(t, IsPermanent(err), "server errors are retried")
	assert.Empty(t, q.jobs)

	api.calls = nil
	api.UpdateOrderErr = nil

	_, err = ProcessPersistJob(context.Background(), job, api, q)

	require.NoError(t, err)
	assert.Equal(t, []string{"update_item:b1", "update_order:order-1"}, api.calls,
		"deleted and added items are not sent twice")
	assert.Len(t, q.jobs, 1)
}

func TestProcessPersistJob_Errors(t *testing.T) {
	t.Run("rejected by order api", func(t *testing.T) {
		job := persistJob(t, commitRequest("order-1"))
		api := &mockOrderAPI{UpdateOrderItemErr: &posapi.APIError{StatusCode: 422}}

		_, err := ProcessPersistJob(context.Background(), job, api, &mockEnqueuer{})

		assert.True(t, IsPermanent(err))
	})

	t.Run("already deleted item", func(t *testing.T) {
		job := persistJob(t, commitRequest("order-1"))
		api := &mockOrderAPI{DeleteOrderItemErr: &posapi.APIError{StatusCode: 404}}

		_, err := ProcessPersistJob(context.Background(), job, api, &mockEnqueuer{})

		assert.NoError(t, err)
	})

	t.Run("bad payload", func(t *testing.T) {
		_, err := ProcessPersistJob(context.Background(), &Job{Payload: []byte("{")}, &mockOrderAPI{}, &mockEnqueuer{})

		assert.True(t, IsPermanent(err))
	})

	t.Run("history not queued", func(t *testing.T) {
		job := persistJob(t, commitRequest("order-1"))

		result, err := ProcessPersistJob(context.Background(), job, &mockOrderAPI{}, &mockEnqueuer{err: errors.New("queue full")})

		require.Error(t, err)
		assert.NotNil(t, result)
	})
}

type mockPublisher struct {
	published []history.Change
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, changes []history.Change) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, changes...)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func TestProcessHistoryJob(t *testing.T) {
	q := &mockEnqueuer{}
	changes := []history.Change{history.New("order-1", history.ActionUpdateOrderDiscount)}
	require.NoError(t, EnqueuePublishOrderChanges(context.Background(), q, "order-1", changes))
	require.NoError(t, EnqueuePublishOrderChanges(context.Background(), q, "order-1", nil))
	require.Len(t, q.jobs, 1, "nothing is queued without changes")

	job := &Job{JobType: q.jobs[0].JobType, Payload: q.jobs[0].Payload}
	pub := &mockPublisher{}

	published, err := ProcessHistoryJob(context.Background(), job, pub)

	require.NoError(t, err)
	assert.Len(t, published, 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, changes[0].ID, pub.published[0].ID)

	pub.err = errors.New("nats: timeout")
	_, err = ProcessHistoryJob(context.Background(), job, pub)
	assert.ErrorContains(t, err, "nats: timeout")
	assert.False(t, IsPermanent(err))
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	err := Permanent(base)

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))
}
