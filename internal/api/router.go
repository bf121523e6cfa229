package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(cfg.Service))
		r.Post("/appointments", reserveHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/reschedule/resolve", resolveRescheduleHandler(cfg.Service))

		r.Group(func(r chi.Router) {
			r.Use(RequireRole("admin"))
			r.Post("/appointments/{id}/reschedule", proposeRescheduleHandler(cfg.Service))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
			r.Delete("/slots/unreserved", pruneSlotsHandler(cfg.Service))
		})
	})

	return r
}
