package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the /api/v1 surface. Reads are open so
// dashboards and scripts work without a login; anything that moves a
// control value sits behind authMiddleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Login and refresh must stay open or nobody could ever get a
		// token.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/auth/me", s.handleAuthMe)
		})

		r.Get("/metrics", s.handleMetrics)
		r.Get("/system/info", s.handleSystemInfo)

		r.Route("/elements", func(r chi.Router) {
			r.Get("/", s.handleListElements)
			r.Get("/lookup", s.handleLookupElement)

			r.Route("/{numid}", func(r chi.Router) {
				r.Get("/", s.handleGetElement)
				r.Get("/value", s.handleGetValue)
				r.Get("/tlv", s.handleGetTLV)
				r.Get("/history", s.handleElementHistory)

				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)

					r.Put("/value", s.handleSetValue)
					r.Post("/lock", s.handleLockElement)
					r.Post("/unlock", s.handleUnlockElement)
					r.Put("/tlv", s.handleSetTLV)
					r.Post("/tlv/command", s.handleTLVCommand)
				})
			})
		})

		// Event history across all elements.
		r.Get("/history", s.handleHistory)

		// WebSocket auth rides a token query parameter, checked in the
		// handler itself.
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth answers liveness probes. It checks nothing downstream;
// /system/info carries the per-subsystem verdicts.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
