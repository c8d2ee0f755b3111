package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearwell-health/patient-portal/internal/appointments"
	httpmiddleware "github.com/clearwell-health/patient-portal/internal/http/middleware"
	"github.com/clearwell-health/patient-portal/internal/providers"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	ProvidersHandler    *providers.Handler
	PortalJWTSecret     string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Patient portal routes, JWT protected.
	r.Group(func(portal chi.Router) {
		portal.Use(httpmiddleware.PatientJWT(cfg.PortalJWTSecret))

		if cfg.AppointmentsHandler != nil {
			portal.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Post("/", cfg.AppointmentsHandler.Schedule)
				r.Get("/live", cfg.AppointmentsHandler.Live)
				r.Post("/sync", cfg.AppointmentsHandler.Sync)
				r.Patch("/{appointmentID}/reschedule", cfg.AppointmentsHandler.Reschedule)
				r.Post("/{appointmentID}/cancel", cfg.AppointmentsHandler.Cancel)
			})
		}
		if cfg.ProvidersHandler != nil {
			portal.Get("/providers", cfg.ProvidersHandler.List)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
