package routes

import (
	"github.com/labstack/echo/v4"
)

// RegisterAPIRoutes registers the pricing and order session routes on the
// /api group.
func RegisterAPIRoutes(api *echo.Group, deps APIDeps) {
	// Stateless quotes
	pricing := api.Group("/pricing")
	pricing.POST("/allocate", deps.PricingHandler.Allocate)
	pricing.POST("/recompute", deps.PricingHandler.Recompute)
	pricing.POST("/reconcile", deps.PricingHandler.Reconcile)

	// Order editing sessions
	sessions := api.Group("/sessions")
	sessions.POST("", deps.SessionHandler.Open)
	sessions.DELETE("/:id", deps.SessionHandler.Close)
	sessions.GET("/:id/totals", deps.SessionHandler.Totals)
	sessions.PUT("/:id/discount", deps.SessionHandler.SetOrderDiscount)
	sessions.POST("/:id/commit", deps.SessionHandler.Commit)

	// Session line items
	sessions.POST("/:id/items", deps.SessionHandler.AddItem)
	sessions.PATCH("/:id/items/:index", deps.SessionHandler.SetQuantity)
	sessions.DELETE("/:id/items/:index", deps.SessionHandler.RemoveItem)
	sessions.PUT("/:id/items/:index/discount", deps.SessionHandler.SetItemDiscount)
}
