package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)
		r.Post("/action", s.handleAction)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/sections/{name}/refresh", s.handleRefreshSection)

		// The device delivers webhook events here.
		r.Post("/webhook/{event}", s.handleWebhook)
	})

	return r
}
