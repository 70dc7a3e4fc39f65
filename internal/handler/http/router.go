package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Swiftdaops/QuickClean/internal/service"
	"github.com/Swiftdaops/QuickClean/pkg/health"
	"github.com/Swiftdaops/QuickClean/pkg/middleware"
)

const serviceName = "storefront"

// Services groups what the router serves.
type Services struct {
	Catalog  service.Catalog
	Carts    *service.CartService
	Bookings *service.BookingService
	Tracker  *service.TrackerService
}

// RouterConfig holds the HTTP-level settings of the storefront API.
type RouterConfig struct {
	Session        SessionConfig
	AllowedOrigins []string
	// RequestTimeout bounds every route except the event stream.
	RequestTimeout   time.Duration
	BookingRateLimit float64
	BookingBurst     int
	// Done stops background work such as rate limiter cleanup.
	Done <-chan struct{}
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger, SessionCookie))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	}

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	catalogHandler := NewCatalogHandler(svcs.Catalog, logger)
	cartHandler := NewCartHandler(svcs.Carts, logger)
	bookingHandler := NewBookingHandler(svcs.Bookings, logger)
	orderHandler := NewOrderHandler(svcs.Tracker, svcs.Bookings, logger)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Session(cfg.Session, logger))
		r.Use(ContentTypeJSON)

		// Buffered request/response routes share one timeout.
		bounded := func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(timeout))
		}

		r.Route("/catalog", func(r chi.Router) {
			bounded(r)
			r.Use(middleware.CacheControl(60))

			r.Get("/stores", catalogHandler.ListStores)
			r.Get("/stores/{storeId}/products", catalogHandler.ListProducts)
			r.Get("/services", catalogHandler.ListServices)
		})

		r.Route("/cart", func(r chi.Router) {
			bounded(r)
			r.Use(middleware.NoStore)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)

			r.Put("/store", cartHandler.SetStore)
			r.Post("/reconcile", cartHandler.Reconcile)
			r.Post("/import", cartHandler.Import)
		})

		r.Route("/bookings", func(r chi.Router) {
			bounded(r)
			r.Use(middleware.NoStore)
			if cfg.BookingRateLimit > 0 {
				r.Use(middleware.RateLimit(middleware.RateLimitConfig{
					RPS:           cfg.BookingRateLimit,
					Burst:         max(cfg.BookingBurst, 1),
					SessionCookie: SessionCookie,
					Done:          cfg.Done,
				}, logger))
			}

			r.Post("/", bookingHandler.Submit)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.NoStore)

			// The event stream stays open for as long as the widget is shown.
			r.Get("/{orderId}/events", orderHandler.Events)

			r.Group(func(r chi.Router) {
				bounded(r)

				r.Get("/", orderHandler.ListOrders)
				r.Get("/last", orderHandler.LastOrder)
				r.Get("/{orderId}/status", orderHandler.GetStatus)
			})
		})
	})

	return r
}
