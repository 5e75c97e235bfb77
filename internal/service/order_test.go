package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCommitter records commits and optionally fails.
type mockCommitter struct {
	EnqueueCommitFunc func(ctx context.Context, req *CommitRequest) error
	committed         []*CommitRequest
}

func (m *mockCommitter) EnqueueCommit(ctx context.Context, req *CommitRequest) error {
	if m.EnqueueCommitFunc != nil {
		if err := m.EnqueueCommitFunc(ctx, req); err != nil {
			return err
		}
	}
	m.committed = append(m.committed, req)
	return nil
}

func newTestOrderService(committer Committer) (OrderService, *SessionStore, *telemetry.BusinessMetrics) {
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	store := NewSessionStore(time.Hour)
	pricingSvc := NewPricingService(StaticPolicy{}, metrics, nil)
	return NewOrderService(store, pricingSvc, committer, metrics, nil), store, metrics
}

func TestOrderService_OpenCommit(t *testing.T) {
	committer := &mockCommitter{}
	svc, store, metrics := newTestOrderService(committer)
	ctx := context.Background()

	sess, err := svc.Open(ctx, OpenRequest{OrderID: "order-1", Items: loadedOrder()})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsActive))

	require.NoError(t, sess.Editor.SetOrderDiscount(dec("30000")))

	req, err := svc.Commit(ctx, sess.ID)

	require.NoError(t, err)
	assert.Equal(t, "170000", req.Totals.Total)
	require.Len(t, committer.committed, 1)
	assert.Same(t, req, committer.committed[0])
	assert.Zero(t, store.Len(), "committed sessions are discarded")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsCommitted))

	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOrderService_OpenRejectsDiscountAboveTotal(t *testing.T) {
	svc, store, metrics := newTestOrderService(&mockCommitter{})

	sess, err := svc.Open(context.Background(), OpenRequest{
		OrderID:       "order-1",
		Items:         []EditorItem{{ID: "a1", ProductID: "com", Quantity: 1, UnitPrice: dec("10000")}},
		OrderDiscount: dec("20000"),
	})

	assert.Nil(t, sess)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Zero(t, store.Len(), "no session is kept for a rejected order")
	assert.Zero(t, testutil.ToFloat64(metrics.SessionsOpened))
}

func TestOrderService_CommitEnqueueFails(t *testing.T) {
	failing := true
	committer := &mockCommitter{
		EnqueueCommitFunc: func(ctx context.Context, req *CommitRequest) error {
			if failing {
				return errors.New("queue full")
			}
			return nil
		},
	}
	svc, store, _ := newTestOrderService(committer)
	ctx := context.Background()

	sess, err := svc.Open(ctx, OpenRequest{OrderID: "order-1", Items: loadedOrder()})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, sess.ID)

	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, 1, store.Len(), "session stays open for a retry")
	assert.NoError(t, sess.Editor.SetOrderDiscount(dec("1000")), "editor accepts edits again")

	failing = false
	_, err = svc.Commit(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, committer.committed, 1)
}

func TestOrderService_OpenInvalid(t *testing.T) {
	svc, store, _ := newTestOrderService(nil)

	_, err := svc.Open(context.Background(), OpenRequest{OrderID: "order-1", Items: loadedOrder(), OrderDiscount: dec("-1")})

	assert.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestOrderService_OpenUsesPolicyOverride(t *testing.T) {
	svc, _, _ := newTestOrderService(nil)
	inclusive := true

	sess, err := svc.Open(context.Background(), OpenRequest{
		Items:            []EditorItem{{ID: "x", ProductID: "lau-thai", Quantity: 1, UnitPrice: dec("110000"), TaxRatePercent: dec("10")}},
		PriceIncludesTax: &inclusive,
	})
	require.NoError(t, err)

	a, err := sess.Editor.Totals()
	require.NoError(t, err)
	assert.Equal(t, "10000", a.Tax.String())
	assert.Equal(t, "110000", a.Total.String())
}

func TestOrderService_CloseAndSweep(t *testing.T) {
	svc, store, metrics := newTestOrderService(nil)
	ctx := context.Background()

	a, err := svc.Open(ctx, OpenRequest{Items: loadedOrder()})
	require.NoError(t, err)
	_, err = svc.Open(ctx, OpenRequest{Items: loadedOrder()})
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, a.ID))
	assert.ErrorIs(t, svc.Close(ctx, a.ID), ErrSessionNotFound)

	clock := &fakeClock{now: time.Now().Add(2 * time.Hour)}
	store.now = clock.Now

	assert.Equal(t, 1, svc.Sweep(ctx))
	assert.Zero(t, store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsExpired))
}
