package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/slotboard/booking-service/internal/booking"
)

type RouterConfig struct {
	Slots        *booking.SlotService
	Appointments *booking.AppointmentService
	Queue        *booking.QueueService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Everything else requires a resolved caller identity
	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Post("/slots", createSlotHandler(cfg.Slots))
		r.Get("/slots", listSlotsHandler(cfg.Slots))
		r.Get("/slots/{id}", getSlotHandler(cfg.Slots))
		r.Put("/slots/{id}", updateSlotHandler(cfg.Slots))
		r.Delete("/slots/{id}", deleteSlotHandler(cfg.Slots))

		r.Post("/slots/{id}/queue/join", joinQueueHandler(cfg.Queue))
		r.Post("/slots/{id}/queue/leave", leaveQueueHandler(cfg.Queue))
		r.Get("/slots/{id}/queue", getQueueHandler(cfg.Queue))

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listConsumerAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/provider", listProviderAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
	})

	return r
}
