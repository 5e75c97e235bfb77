// Package router assembles the echo server: middleware chain, error
// rendering, request validation and the operational endpoints.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dukerupert/tabletill/internal/handler"
	"github.com/dukerupert/tabletill/internal/middleware"
)

// DefaultBodyLimit caps request bodies. Orders are small.
const DefaultBodyLimit = "1M"

// Config holds what the router needs from the application.
type Config struct {
	Logger *zerolog.Logger

	// Metrics records HTTP metrics when set.
	Metrics *middleware.Metrics

	// Gatherer backs GET /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// RateLimiter throttles /api requests per client when set.
	RateLimiter *middleware.RateLimiter

	BodyLimit string
}

// New creates an echo instance with the global middleware chain, /health and
// /metrics registered. API routes are added with the returned group.
func New(cfg Config) (*echo.Echo, *echo.Group) {
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(cfg.Logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.WithRequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
	}
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	e.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}
	return e, api
}
