package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/covenant-cm/covenant/internal/contracts"
	"github.com/covenant-cm/covenant/internal/identity"
	"github.com/covenant-cm/covenant/internal/observability"
	"github.com/covenant-cm/covenant/internal/orgs"
	"github.com/covenant-cm/covenant/internal/projects"
	"github.com/covenant-cm/covenant/internal/reports"
	"github.com/covenant-cm/covenant/internal/settings"
	"github.com/covenant-cm/covenant/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authenticator   identity.Authenticator
	IdentityHandler *identity.Handler
	OrgsHandler     *orgs.Handler
	ProjectsHandler *projects.Handler
	ContractHandler *contracts.Handler
	ReportsHandler  *reports.Handler
	SettingsHandler *settings.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Covenant defaults. Every
// API route sits behind bearer authentication; health and metrics stay
// public for probes and scrapers.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)

		if params.IdentityHandler != nil {
			params.IdentityHandler.MountRoutes(r)
		}
		if params.OrgsHandler != nil {
			r.Route("/organizations", params.OrgsHandler.MountRoutes)
		}
		if params.ProjectsHandler != nil {
			r.Route("/projects", params.ProjectsHandler.MountRoutes)
		}
		if params.ContractHandler != nil {
			r.Route("/contracts", params.ContractHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountAdminRoutes)
		}
	})

	return r
}
