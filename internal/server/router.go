// Package server is the HTTP surface: a chi router over the orchestrator
// plus cache admin, funnel metrics, and health endpoints. Handlers depend
// on narrow interfaces so tests can script the pipeline.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventscout/eventscout/pkg/version"
)

// RouterConfig carries the wired handlers. Nil handlers disable their
// routes with a 503 instead of a 404 so operators can tell "not mounted"
// from "not configured".
type RouterConfig struct {
	Search  *SearchHandler
	Cache   *CacheHandler
	Metrics *MetricsHandler
}

// NewRouter assembles the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(RequestID)
	r.Use(Recover)
	r.Use(AccessLog)
	r.Use(MaxBodyBytes(maxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		Success(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Short(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		if cfg.Search != nil {
			r.Post("/search", cfg.Search.Search)
		} else {
			r.Post("/search", notConfigured("search"))
		}

		if cfg.Cache != nil {
			r.Post("/cache/invalidate", cfg.Cache.Invalidate)
			r.Get("/cache/stats", cfg.Cache.Stats)
		} else {
			r.Post("/cache/invalidate", notConfigured("cache"))
			r.Get("/cache/stats", notConfigured("cache"))
		}

		if cfg.Metrics != nil {
			r.Get("/metrics", cfg.Metrics.Metrics)
		} else {
			r.Get("/metrics", notConfigured("metrics"))
		}
	})

	return r
}

func notConfigured(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusServiceUnavailable, what+" is not configured")
	}
}
