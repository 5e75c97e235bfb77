package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/tabletill/internal"
	"github.com/dukerupert/tabletill/internal/handler"
	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/jobs"
	"github.com/dukerupert/tabletill/internal/middleware"
	"github.com/dukerupert/tabletill/internal/posapi"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/router"
	"github.com/dukerupert/tabletill/internal/routes"
	"github.com/dukerupert/tabletill/internal/service"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/dukerupert/tabletill/internal/worker"
)

// sweepInterval is how often idle editing sessions are checked for expiry.
const sweepInterval = time.Minute

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Metrics
	businessMetrics := telemetry.InitBusinessMetrics("tabletill")
	httpMetrics := middleware.NewMetrics("tabletill", nil)

	// Order API client and store settings
	posClient := posapi.NewClient(posapi.Config{
		BaseURL: cfg.POS.BaseURL,
		Timeout: cfg.POS.Timeout,
	}, businessMetrics, logger)
	settings := posapi.NewSettingsProvider(posClient, pricing.TaxPolicy{PriceIncludesTax: cfg.PriceIncludesTax}, logger)
	settingsCtx, cancelSettings := context.WithTimeout(ctx, cfg.POS.Timeout)
	settings.TaxPolicy(settingsCtx)
	cancelSettings()

	// Change history publisher
	var publisher history.Publisher = history.NopPublisher{}
	if cfg.NATS.URL != "" {
		logger.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")
		natsPublisher, err := history.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		publisher = natsPublisher
		logger.Info().Str("subject", history.Subject(cfg.NATS.SubjectPrefix)).Msg("NATS connection established")
	} else {
		logger.Warn().Msg("NATS_URL not set, order change history will not be published")
	}
	defer publisher.Close()

	// Background worker
	w := worker.NewWorker(posClient, publisher, worker.Config{
		MaxConcurrency: cfg.Worker.Concurrency,
		QueueSize:      cfg.Worker.QueueSize,
		MaxRetries:     cfg.Worker.MaxRetries,
		RetryBackoff:   cfg.Worker.RetryBackoff,
	}, businessMetrics, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := w.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker stopped")
		}
	}()

	// Services
	pricingService := service.NewPricingService(settings, businessMetrics, logger)
	orderService := service.NewOrderService(
		service.NewSessionStore(cfg.SessionTTL),
		pricingService,
		jobs.NewDispatcher(w),
		businessMetrics,
		logger,
	)

	go sweepSessions(ctx, orderService)

	// Router
	routerCfg := router.Config{
		Logger:  logger,
		Metrics: httpMetrics,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Burst,
			CleanupInterval:   time.Minute,
		})
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
	}
	e, api := router.New(routerCfg)

	routes.RegisterAPIRoutes(api, routes.APIDeps{
		PricingHandler: handler.NewPricingHandler(pricingService),
		SessionHandler: handler.NewSessionHandler(orderService),
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", addr).Str("pos_api", cfg.POS.BaseURL).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	// In-flight jobs finish before the publisher closes.
	stopWorker()
	select {
	case <-w.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("worker did not stop before the shutdown deadline")
	}

	return nil
}

// sweepSessions discards idle editing sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, orders service.OrderService) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orders.Sweep(ctx)
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
