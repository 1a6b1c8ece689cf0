// Package routes assembles the chi router and registers the API surface.
package routes

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/http/handlers"
	"github.com/jmylchreest/jobsift/internal/http/mw"
	"github.com/jmylchreest/jobsift/internal/version"
)

const requestTimeout = 30 * time.Second

// NewRouter builds the full router: global middleware, public read routes,
// and token-guarded mutating routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.RequestLogger(logger.With("component", "http")))
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(requestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 1MB request cap and a per-IP rate limit; this API serves one person
	// and a Telegram webhook, anything chatty is abuse.
	router.Use(middleware.RequestSize(1 << 20))
	router.Use(httprate.LimitByIP(100, time.Minute))

	humaConfig := huma.DefaultConfig("JobSift API", version.Get().Short())
	humaConfig.Info.Description = "Job-search intelligence pipeline: browse scored postings, review fit analyses, and track application state."
	humaConfig.Servers = []*huma.Server{{URL: cfg.BaseURL}}
	api := humachi.New(router, humaConfig)

	huma.Get(api, "/health", h.Health)
	huma.Get(api, "/status", h.Status)
	huma.Get(api, "/api/jobs", h.ListJobs)
	huma.Get(api, "/api/jobs/{id}", h.GetJob)
	huma.Get(api, "/api/analytics/sources", h.SourceBreakdown)
	huma.Get(api, "/api/analytics/weekly", h.WeeklySummary)

	// Mutating routes live behind the bearer token when one is configured.
	// The second huma instance shares the first one's schema registry paths
	// but skips the docs endpoints so they are registered once.
	protectedConfig := huma.DefaultConfig("JobSift API", version.Get().Short())
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	router.Group(func(r chi.Router) {
		r.Use(mw.RequireToken(cfg.APIToken))

		protectedAPI := humachi.New(r, protectedConfig)
		huma.Post(protectedAPI, "/api/jobs/{id}/applied", h.MarkApplied)
		huma.Post(protectedAPI, "/api/jobs/{id}/dismissed", h.MarkDismissed)
		huma.Post(protectedAPI, "/api/telegram/callback", h.TelegramCallback)
	})

	return router
}
