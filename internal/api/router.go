package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 3 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/display", s.handleDisplaySession)

		r.Route("/displays", func(r chi.Router) {
			r.Get("/", s.handleListDisplays)
			r.Post("/", s.handleCreateDisplay)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDisplay)
				r.Patch("/", s.handleUpdateDisplay)
				r.Delete("/", s.handleDeleteDisplay)
				r.Get("/views", s.handleListDisplayViews)
				r.Get("/presence", s.handleDisplayPresence)
			})
		})

		r.Route("/views", func(r chi.Router) {
			r.Get("/", s.handleListViews)
			r.Post("/", s.handleCreateView)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetView)
				r.Patch("/", s.handleUpdateView)
				r.Delete("/", s.handleDeleteView)
				r.Get("/slots", s.handleGetViewSlots)
				r.Put("/slots", s.handleReconcileViewSlots)
			})
		})

		r.Route("/slots/{id}/options", func(r chi.Router) {
			r.Get("/", s.handleGetSlotOptions)
			r.Put("/", s.handleReconcileSlotOptions)
		})

		r.Get("/audit", s.handleListAuditLogs)

		// Authenticated by the token query parameter.
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports "ok" when every registered component is healthy and
// "degraded" with a 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.health))
	for name, checker := range s.health {
		if err := checker.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":            status,
		"version":           s.version,
		"components":        components,
		"websocket_clients": s.hub.ClientCount(),
	})
}
