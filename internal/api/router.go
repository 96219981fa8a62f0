package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Database    HealthChecker
	Runs        RunReader
	Refresher   RefreshStatus
	CORSOrigins []string
	Development bool
}

// RouterResult holds the router and resources that need cleanup
type RouterResult struct {
	Router       *chi.Mux
	RateLimiters *RateLimiters
}

// NewRouter creates and configures the HTTP router.
// Caller must call result.RateLimiters.Stop() on shutdown.
func NewRouter(cfg *RouterConfig) *RouterResult {
	r := chi.NewRouter()

	rateLimiters := NewRateLimiters()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.CORSOrigins, cfg.Development))
	r.Use(rateLimiters.Global.Middleware)

	r.Get("/api/health", NewHealthHandler(cfg.Database))

	statsHandler := NewStatsHandler(cfg.Runs, cfg.Refresher)
	r.Get("/api/stats/health", statsHandler.Health)
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", statsHandler.ListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", statsHandler.GetRun)
			r.Get("/detailed", statsHandler.Detailed)
			r.Get("/summary", statsHandler.Summary)
			r.With(rateLimiters.ExportGuard).Get("/export", statsHandler.Export)
		})
	})

	return &RouterResult{
		Router:       r,
		RateLimiters: rateLimiters,
	}
}
