/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, picked up by logger.FromContext
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests from dashboards

ROUTE GROUPS:
  /api/verticals   Registered verticals
  /api/personas/*  Demo personas
  /api/runs/*      Generation runs and their data
  /api/specs/*     Custom vertical specs
  /healthz         Liveness

SECURITY NOTE:
  No authentication middleware. Generation is rate limited in the handlers.
  CORS never allows credentials, so a "*" origin stays anonymous.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false, // no cookies or auth; origins may include "*"
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/verticals", h.ListVerticals)

		r.Route("/personas", func(r chi.Router) {
			r.Get("/", h.ListPersonas)
			r.Get("/current", h.GetCurrentPersona)
			r.Post("/load", h.LoadPersona)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)
			r.Get("/{id}", h.GetRun)
			r.Delete("/{id}", h.DeleteRun)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/collections/{name}", h.GetCollection)
		})

		r.Route("/specs", func(r chi.Router) {
			r.Get("/", h.ListSpecs)
			r.Post("/", h.CreateSpec)
			r.Get("/{name}", h.GetSpec)
			r.Delete("/{name}", h.DeleteSpec)
		})
	})

	return r
}
