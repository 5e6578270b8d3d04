package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns the router with all application routes:
// health check, account and contact endpoints, the WebSocket endpoint, the
// test page and Prometheus metrics.
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  s.origins.allowsCORS,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", sessionKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "Method Not Allowed"})
	})

	r.Get("/", HealthHandler)
	r.Get("/test", TestPageHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/register", s.RegisterHandler)
	r.Post("/login", s.LoginHandler)
	r.Post("/contacts", s.AddContactHandler)
	r.Get("/contacts", s.ListContactsHandler)
	r.Get("/ws", s.WebSocketHandler)

	return r
}
