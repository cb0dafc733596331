package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/locagame/internal/service"
	"github.com/utafrali/locagame/pkg/health"
	"github.com/utafrali/locagame/pkg/middleware"
)

// RouterConfig carries the collaborators NewRouter mounts.
type RouterConfig struct {
	Availability *service.AvailabilityService
	Booking      *service.BookingService
	Health       *health.Handler
	Registry     *prometheus.Registry
	CORS         middleware.CORSConfig
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all rental stock routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry, "rental-stock").Middleware)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	availability := NewAvailabilityHandler(cfg.Availability, cfg.Logger)
	stock := NewStockHandler(cfg.Booking, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Availability reads
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Get("/products/{productId}/availability", availability.CheckRange)
			r.Get("/products/{productId}/calendar", availability.Calendar)
			r.Post("/availability/unavailable", availability.FilterUnavailable)
		})

		// Back-office stock management
		r.Get("/products/{productId}", stock.GetProduct)
		r.Put("/products/{productId}", stock.UpsertProduct)
		r.Get("/products/{productId}/intervals", stock.ListIntervals)
		r.Post("/products/{productId}/blocks", stock.CreateBlock)
		r.Delete("/blocks/{intervalId}", stock.DeleteBlock)

		// Reservation holds
		r.Post("/reservations/{reservationId}/hold", stock.HoldReservation)
		r.Delete("/reservations/{reservationId}/hold", stock.ReleaseReservation)
	})

	return r
}
