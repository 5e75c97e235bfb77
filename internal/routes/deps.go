package routes

import (
	"github.com/dukerupert/tabletill/internal/handler"
)

// APIDeps contains the handlers served under /api
type APIDeps struct {
	PricingHandler *handler.PricingHandler
	SessionHandler *handler.SessionHandler
}
