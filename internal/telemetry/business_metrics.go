package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for pricing and order-editing
// observability.
type BusinessMetrics struct {
	// Quotes
	QuotesComputed *prometheus.CounterVec
	QuotesRejected *prometheus.CounterVec
	DiscountAmount *prometheus.CounterVec
	OrderTotal     *prometheus.HistogramVec
	OrderItemCount *prometheus.HistogramVec

	// Editing sessions
	SessionsOpened    prometheus.Counter
	SessionsCommitted prometheus.Counter
	SessionsExpired   prometheus.Counter
	SessionsActive    prometheus.Gauge

	// Change history
	ChangesPublished *prometheus.CounterVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External API performance
	OrderAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates all business metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "tabletill"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "business"

	m := &BusinessMetrics{
		// =======================================================================
		// Quotes
		// =======================================================================
		QuotesComputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "quotes_computed_total",
				Help:      "Total order allocations computed",
			},
			[]string{"mode", "tax_policy"}, // mode: order, items; tax_policy: inclusive, exclusive
		),
		QuotesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "quotes_rejected_total",
				Help:      "Total allocations rejected because of invalid input",
			},
			[]string{"mode", "reason"},
		),
		DiscountAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "discount_amount_total",
				Help:      "Total discount allocated, in whole currency units",
			},
			[]string{"mode"},
		),
		OrderTotal: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_total",
				Help:      "Distribution of computed order totals, in whole currency units",
				Buckets:   prometheus.ExponentialBuckets(10000, 2.5, 10),
			},
			[]string{"mode"},
		),
		OrderItemCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Number of line items per priced order",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"mode"},
		),

		// =======================================================================
		// Editing Sessions
		// =======================================================================
		SessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_opened_total",
				Help:      "Total order editing sessions opened",
			},
		),
		SessionsCommitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_committed_total",
				Help:      "Total order editing sessions committed",
			},
		),
		SessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_expired_total",
				Help:      "Total order editing sessions discarded after going idle",
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_active",
				Help:      "Order editing sessions currently open",
			},
		),

		// =======================================================================
		// Change History
		// =======================================================================
		ChangesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "changes_published_total",
				Help:      "Total order change records published",
			},
			[]string{"action"},
		),

		// =======================================================================
		// Background Jobs
		// =======================================================================
		JobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_enqueued_total",
				Help:      "Total background jobs enqueued",
			},
			[]string{"job_type"},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Total background jobs successfully processed",
			},
			[]string{"job_type"},
		),
		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_failed_total",
				Help:      "Total background job failures",
			},
			[]string{"job_type", "error_type"}, // error_type: retry, exhausted
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job execution duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job_type"},
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		OrderAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_api_duration_seconds",
				Help:      "Order API call duration (helps differentiate app slowness from order API issues)",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "status"}, // operation: update_order_item, add_order_items, update_order, etc.
		),
	}

	return m
}

// TaxPolicyLabel renders the store tax setting as a metric label.
func TaxPolicyLabel(priceIncludesTax bool) string {
	if priceIncludesTax {
		return "inclusive"
	}
	return "exclusive"
}

// ObserveOrderAPI records the latency of one order API call started at start.
func (m *BusinessMetrics) ObserveOrderAPI(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OrderAPILatency.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, prometheus.DefaultRegisterer)
	return Business
}
