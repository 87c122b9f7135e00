package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds all dependency checks of one GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/refresh", s.handleRefreshDevice)
			})
		})

		r.Get("/system/ratelimit", s.handleRateLimit)

		if s.pairer != nil && s.pairings != nil {
			r.Route("/integrations/nanoleaf/pairings", func(r chi.Router) {
				r.Get("/", s.handleListPairings)
				r.Post("/", s.handleCreatePairing)
				r.Delete("/{id}", s.handleDeletePairing)
			})
		}

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the WebSocket route under /api/v1. Default: /ws.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return "/" + strings.TrimPrefix(s.wsCfg.Path, "/")
}

// handleHealth reports liveness plus the state of optional dependencies.
// A failing dependency degrades the status but never fails the request.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(s.healthChecks))
	for name, hc := range s.healthChecks {
		if err := hc.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"site":       s.siteID,
		"version":    s.version,
		"polling":    s.devices.IsPolling(),
		"clients":    s.devices.ClientCount(),
		"components": components,
	})
}
