package service

import (
	"context"
	"errors"

	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PolicySource supplies the store-wide tax setting.
type PolicySource interface {
	TaxPolicy(ctx context.Context) pricing.TaxPolicy
}

// StaticPolicy is a PolicySource with a fixed setting.
type StaticPolicy pricing.TaxPolicy

func (p StaticPolicy) TaxPolicy(context.Context) pricing.TaxPolicy {
	return pricing.TaxPolicy(p)
}

// QuoteRequest is a one-shot pricing request. PriceIncludesTax overrides the
// store setting when set. DiscountPercent, when set, replaces OrderDiscount
// with that percentage of the order total.
type QuoteRequest struct {
	Items            []pricing.LineItem `json:"items"`
	OrderDiscount    decimal.Decimal    `json:"orderDiscount"`
	DiscountPercent  *decimal.Decimal   `json:"discountPercent,omitempty"`
	PriceIncludesTax *bool              `json:"priceIncludesTax,omitempty"`
}

// PricingService provides stateless quote operations.
type PricingService interface {
	// Allocate distributes the request's order discount over its items.
	Allocate(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error)
	// Recompute prices the items with their own discounts.
	Recompute(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error)
	// Reconcile picks Allocate or Recompute depending on whether the order
	// discount and the item discounts agree.
	Reconcile(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error)
	// Policy resolves the tax policy for a request.
	Policy(ctx context.Context, override *bool) pricing.TaxPolicy
}

type pricingService struct {
	policy  PolicySource
	metrics *telemetry.BusinessMetrics
	logger  *zerolog.Logger
}

// NewPricingService creates a new PricingService instance
func NewPricingService(policy PolicySource, metrics *telemetry.BusinessMetrics, logger *zerolog.Logger) PricingService {
	if policy == nil {
		policy = StaticPolicy{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &pricingService{
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *pricingService) Policy(ctx context.Context, override *bool) pricing.TaxPolicy {
	if override != nil {
		return pricing.TaxPolicy{PriceIncludesTax: *override}
	}
	return s.policy.TaxPolicy(ctx)
}

func (s *pricingService) Allocate(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error) {
	const op = "service.Allocate"

	policy := s.Policy(ctx, req.PriceIncludesTax)

	discount := req.OrderDiscount
	if req.DiscountPercent != nil {
		pct := *req.DiscountPercent
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			s.rejected(pricing.ModeOrder, "invalid_percent")
			return nil, opError(op, ErrInvalidPercent)
		}
		discount = pricing.DiscountFromPercent(pricing.GrossTotal(req.Items), pct)
	}

	a, err := pricing.AllocateFromOrderDiscount(req.Items, discount, policy)
	if err != nil {
		s.rejected(pricing.ModeOrder, reason(err))
		s.logger.Debug().Err(err).Str("discount", discount.String()).Int("items", len(req.Items)).Msg("allocation rejected")
		return nil, err
	}

	s.observe(a, policy)
	return &a, nil
}

func (s *pricingService) Recompute(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error) {
	policy := s.Policy(ctx, req.PriceIncludesTax)

	a, err := pricing.RecomputeOrderFromItems(req.Items, policy)
	if err != nil {
		s.rejected(pricing.ModeItems, reason(err))
		s.logger.Debug().Err(err).Int("items", len(req.Items)).Msg("recompute rejected")
		return nil, err
	}

	s.observe(a, policy)
	return &a, nil
}

func (s *pricingService) Reconcile(ctx context.Context, req QuoteRequest) (*pricing.Allocation, error) {
	if req.DiscountPercent != nil || pricing.Diverged(req.OrderDiscount, req.Items) {
		return s.Allocate(ctx, req)
	}
	return s.Recompute(ctx, req)
}

func (s *pricingService) observe(a pricing.Allocation, policy pricing.TaxPolicy) {
	s.logger.Debug().
		Str("mode", string(a.Mode)).
		Bool("price_includes_tax", policy.PriceIncludesTax).
		Str("discount", a.Discount.String()).
		Str("total", a.Total.String()).
		Int("items", len(a.Items)).
		Msg("order priced")

	if s.metrics == nil {
		return
	}
	mode := string(a.Mode)
	s.metrics.QuotesComputed.WithLabelValues(mode, telemetry.TaxPolicyLabel(policy.PriceIncludesTax)).Inc()
	discount, _ := a.Discount.Float64()
	s.metrics.DiscountAmount.WithLabelValues(mode).Add(discount)
	total, _ := a.Total.Float64()
	s.metrics.OrderTotal.WithLabelValues(mode).Observe(total)
	s.metrics.OrderItemCount.WithLabelValues(mode).Observe(float64(len(a.Items)))
}

func (s *pricingService) rejected(mode pricing.Mode, why string) {
	if s.metrics == nil {
		return
	}
	s.metrics.QuotesRejected.WithLabelValues(string(mode), why).Inc()
}

// reason maps a pricing error to a low-cardinality metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, pricing.ErrDiscountExceedsSubtotal):
		return "exceeds_subtotal"
	case errors.Is(err, pricing.ErrItemDiscountExceedsLine):
		return "exceeds_line"
	case errors.Is(err, pricing.ErrNegativeDiscount):
		return "negative_discount"
	case errors.Is(err, ErrInvalidPercent):
		return "invalid_percent"
	default:
		return "invalid_items"
	}
}
