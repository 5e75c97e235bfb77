package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/service"
)

// QuoteResponse is a priced order together with the payload the order API
// expects for it.
type QuoteResponse struct {
	Allocation *pricing.Allocation  `json:"allocation"`
	Payload    pricing.OrderPayload `json:"payload"`
}

// PricingHandler serves one-shot pricing quotes.
type PricingHandler struct {
	pricing service.PricingService
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(pricing service.PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// Allocate handles POST /api/pricing/allocate
func (h *PricingHandler) Allocate(c echo.Context) error {
	return h.quote(c, h.pricing.Allocate)
}

// Recompute handles POST /api/pricing/recompute
func (h *PricingHandler) Recompute(c echo.Context) error {
	return h.quote(c, h.pricing.Recompute)
}

// Reconcile handles POST /api/pricing/reconcile
func (h *PricingHandler) Reconcile(c echo.Context) error {
	return h.quote(c, h.pricing.Reconcile)
}

func (h *PricingHandler) quote(c echo.Context, price func(context.Context, service.QuoteRequest) (*pricing.Allocation, error)) error {
	var req service.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	a, err := price(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		Allocation: a,
		Payload:    pricing.Payload(*a),
	})
}
