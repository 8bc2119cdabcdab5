package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/history"
	"github.com/mediqueue/queue-service/internal/queue"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Queue        *queue.Service
	QueueView    *queue.Projection
	History      *history.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	JWTSecret    string
	Env          string
	Version      string
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints stay open; everything else requires a verified
	// identity from the external identity service.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/doctors", listDoctorsHandler(cfg.Appointments))
		r.Get("/doctors/{doctorID}/appointments", listDoctorAppointmentsHandler(cfg.Appointments))

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/checkin", checkInHandler(cfg.Queue))

		r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Appointments))
		r.Get("/patients/{patientID}/history", listHistoryHandler(cfg.History))

		r.Get("/queue/{doctorID}", queueSnapshotHandler(cfg.QueueView))
		r.Get("/queue/{doctorID}/live", liveQueueHandler(cfg.QueueView))
		r.Post("/queue/entries/{id}/cancel", cancelQueueEntryHandler(cfg.Queue))

		// Doctor-only surface.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleDoctor))
			r.Post("/queue/{doctorID}/call-next", callNextHandler(cfg.Queue))
			r.Post("/patients/{patientID}/history", createHistoryHandler(cfg.History))
		})
	})

	return r
}
