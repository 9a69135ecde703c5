package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/chat"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/invitation"
	"github.com/hackgods/emr-backend/internal/metrics"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Invitations  *invitation.Service
	History      *chat.History
	Chat         *chat.Handler
	Verifier     chat.CredentialVerifier
	Directory    directory.Directory
	Metrics      *metrics.Metrics
	Health       *HealthHandler
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Handle("/metrics", cfg.Metrics.Handler())

	// Browsers cannot set headers on WebSocket handshakes, so this route
	// sits outside the Bearer auth group.
	ws := chatSocketHandler(cfg.Chat)
	r.Get("/ws/chat/{user1}/{user2}", ws)
	r.Get("/ws/chat/{user1}/{user2}/", ws)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier, cfg.Directory))

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", listAppointmentsHandler(cfg.Appointments))
			r.Post("/", createAppointmentHandler(cfg.Appointments, cfg.Metrics))
			r.Get("/available-slots", availableSlotsHandler(cfg.Appointments))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Put("/{id}", updateAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}", updateAppointmentHandler(cfg.Appointments))
			r.Delete("/{id}", deleteAppointmentHandler(cfg.Appointments))
		})

		r.Get("/doctor/{id}/patients", practitionerPatientsHandler(cfg.Appointments))
		r.Get("/patient/{id}/doctors", patientPractitionersHandler(cfg.Appointments))

		r.Route("/invitations", func(r chi.Router) {
			r.Get("/", listInvitationsHandler(cfg.Invitations))
			r.Post("/", createInvitationHandler(cfg.Invitations))
			r.Get("/{id}", getInvitationHandler(cfg.Invitations))
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/history/{user1}/{user2}", chatHistoryHandler(cfg.History))
			r.Get("/conversations", conversationsHandler(cfg.History))
			r.Post("/read/{counterpart_id}", markReadHandler(cfg.History))
		})
	})

	return r
}
