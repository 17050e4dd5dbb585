package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fsdh/datahub-samples/internal/config"
	"github.com/fsdh/datahub-samples/internal/database"
	"github.com/fsdh/datahub-samples/internal/http/handler"
	"github.com/fsdh/datahub-samples/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg                  *config.Config
	logger               *zap.Logger
	db                   *gorm.DB
	rateLimiter          *middleware.RateLimiter
	celestialBodyHandler *handler.CelestialBodyHandler
	storageHandler       *handler.StorageHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	rateLimiter *middleware.RateLimiter,
	celestialBodyHandler *handler.CelestialBodyHandler,
	storageHandler *handler.StorageHandler,
) *Router {
	return &Router{
		cfg:                  cfg,
		logger:               logger,
		db:                   db,
		rateLimiter:          rateLimiter,
		celestialBodyHandler: celestialBodyHandler,
		storageHandler:       storageHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	// Health check (basic liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check (readiness with pool stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"service":   "database",
			"stats":     stats,
			"checkedAt": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/celestial-bodies", func(r chi.Router) {
			r.Get("/", rt.celestialBodyHandler.List)
			r.Get("/jdbc", rt.celestialBodyHandler.Load)
		})

		r.Route("/storage", func(r chi.Router) {
			r.Get("/ls", rt.storageHandler.List)
			r.Get("/mounts", rt.storageHandler.Mounts)
			r.Get("/preview", rt.storageHandler.Preview)
		})
	})

	return r
}
