package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/config"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/internal/refresh"
	"github.com/mlenko/flightpath/pkg/logger"
)

// Router assembles the HTTP API.
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
}

// NewRouter creates a new API router
func NewRouter(
	refreshSvc *refresh.Service,
	governor *quota.Governor,
	statsCache *cache.Cache,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		handler:    NewHandler(refreshSvc, governor, statsCache, log),
		middleware: NewMiddleware(log),
		config:     cfg,
	}
}

// Routes returns the HTTP handler for the API
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Flight progress
		router.Get("/flights/{carrier}/{number}/progress", r.handler.GetFlightProgress)
		router.Post("/flights/refresh", r.handler.BulkRefresh)

		// Ops surfaces
		router.Get("/quota", r.handler.GetQuotaStatus)
		router.Get("/cache/stats", r.handler.GetCacheStats)
		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
