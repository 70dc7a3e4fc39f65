// Package metrics holds the storefront's domain metrics. Transport metrics
// live next to their middleware in pkg.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation outcomes.
const (
	ReconcileUpdated    = "updated"
	ReconcileUnchanged  = "unchanged"
	ReconcileNoStore    = "no_store"
	ReconcileFetchError = "fetch_error"
	ReconcileEmpty      = "empty"
)

// Booking outcomes.
const (
	BookingSubmitted = "submitted"
	BookingInvalid   = "invalid"
	BookingFailed    = "failed"
)

var (
	// ReconciliationsTotal counts price reconciliations by outcome.
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_reconciliations_total",
			Help: "Total number of cart price reconciliations by outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// RepricedLines counts cart lines whose price changed on reconciliation.
	RepricedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_repriced_lines_total",
			Help: "Total number of cart lines repriced from the store catalog",
		},
	)

	// CartPersistFailures counts client state writes that failed.
	CartPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_failures_total",
			Help: "Total number of failed cart persistence writes",
		},
		[]string{"operation"},
	)

	// BookingsTotal counts booking submissions by outcome.
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_bookings_total",
			Help: "Total number of booking submissions by outcome",
		},
		[]string{"outcome"},
	)

	// HandoffsTotal counts hand-off deliveries by channel (opened, copied, none).
	HandoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_handoffs_total",
			Help: "Total number of booking hand-offs by delivery channel",
		},
		[]string{"channel"},
	)

	// OrderViewsActive tracks open order status views.
	OrderViewsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_order_views_active",
			Help: "Current number of open order status views",
		},
	)

	// StatusEventsApplied counts pushed status events applied to a view.
	StatusEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_status_events_total",
			Help: "Total number of pushed status events by result",
		},
		[]string{"result"},
	)
)
