package http

import (
	"github.com/altavia/airbook/internal/observability"
	"github.com/altavia/airbook/internal/rateLimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyKeyMiddleware)

	r.Post("/v1/bookings", h.CreateBooking)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Get("/v1/flights/{number}/seats", h.ListAvailableSeats)
	r.Post("/v1/flights", h.RegisterFlight)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
