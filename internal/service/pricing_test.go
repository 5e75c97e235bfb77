package service

import (
	"context"
	"testing"

	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteItems() []pricing.LineItem {
	return []pricing.LineItem{
		{ProductID: "pho-bo", Quantity: 1, UnitPrice: dec("100000"), TaxRatePercent: dec("10")},
		{ProductID: "tra-da", Quantity: 2, UnitPrice: dec("50000"), TaxRatePercent: dec("10")},
	}
}

func newTestPricingService(policy PolicySource) (PricingService, *telemetry.BusinessMetrics) {
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	return NewPricingService(policy, metrics, nil), metrics
}

func TestPricingService_Allocate(t *testing.T) {
	svc, metrics := newTestPricingService(StaticPolicy{PriceIncludesTax: true})

	a, err := svc.Allocate(context.Background(), QuoteRequest{Items: quoteItems(), OrderDiscount: dec("30000")})

	require.NoError(t, err)
	assert.Equal(t, pricing.ModeOrder, a.Mode)
	assert.Equal(t, "170000", a.Total.String())
	assert.Equal(t, "154546", a.Subtotal.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuotesComputed.WithLabelValues("order", "inclusive")))
	assert.Equal(t, 30000.0, testutil.ToFloat64(metrics.DiscountAmount.WithLabelValues("order")))
}

func TestPricingService_AllocatePercent(t *testing.T) {
	svc, _ := newTestPricingService(nil)
	pct := dec("10")

	a, err := svc.Allocate(context.Background(), QuoteRequest{Items: quoteItems(), DiscountPercent: &pct})

	require.NoError(t, err)
	assert.Equal(t, "20000", a.Discount.String())

	bad := dec("101")
	_, err = svc.Allocate(context.Background(), QuoteRequest{Items: quoteItems(), DiscountPercent: &bad})
	assert.ErrorIs(t, err, ErrInvalidPercent)
}

func TestPricingService_PolicyOverride(t *testing.T) {
	svc, _ := newTestPricingService(StaticPolicy{PriceIncludesTax: true})
	exclusive := false

	a, err := svc.Allocate(context.Background(), QuoteRequest{Items: quoteItems(), PriceIncludesTax: &exclusive})

	require.NoError(t, err)
	assert.Equal(t, "200000", a.Subtotal.String())
	assert.Equal(t, "20000", a.Tax.String())
	assert.Equal(t, "220000", a.Total.String())
}

func TestPricingService_Rejected(t *testing.T) {
	svc, metrics := newTestPricingService(StaticPolicy{})

	_, err := svc.Allocate(context.Background(), QuoteRequest{Items: quoteItems(), OrderDiscount: dec("200001")})

	assert.ErrorIs(t, err, pricing.ErrDiscountExceedsSubtotal)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuotesRejected.WithLabelValues("order", "exceeds_subtotal")))

	items := quoteItems()
	items[0].Discount = dec("100001")
	_, err = svc.Recompute(context.Background(), QuoteRequest{Items: items})

	assert.ErrorIs(t, err, pricing.ErrItemDiscountExceedsLine)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuotesRejected.WithLabelValues("items", "exceeds_line")))
}

func TestPricingService_Reconcile(t *testing.T) {
	svc, _ := newTestPricingService(StaticPolicy{})

	tests := []struct {
		name          string
		orderDiscount string
		itemDiscounts []string
		expectedMode  pricing.Mode
	}{
		{name: "in sync", orderDiscount: "7500", itemDiscounts: []string{"5000", "2500"}, expectedMode: pricing.ModeItems},
		{name: "diverged", orderDiscount: "30000", itemDiscounts: []string{"5000", "2500"}, expectedMode: pricing.ModeOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := quoteItems()
			for i, d := range tt.itemDiscounts {
				items[i].Discount = dec(d)
			}

			a, err := svc.Reconcile(context.Background(), QuoteRequest{Items: items, OrderDiscount: dec(tt.orderDiscount)})

			require.NoError(t, err)
			assert.Equal(t, tt.expectedMode, a.Mode)
			assert.Equal(t, tt.orderDiscount, a.Discount.String())
		})
	}
}
