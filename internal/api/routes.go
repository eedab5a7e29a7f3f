package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meridian-research/audience/internal/auth"
)

// SetupRoutes configures all API routes. Admin routes live under /api/admin
// behind the bearer-token middleware; the signup endpoint is public so the
// marketing site can post to it directly.
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://meridian-research.com", "http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public signup from the marketing site.
	r.Post("/api/subscribe", h.HandleSubscribe)

	// Admin back office.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authManager.Middleware)

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", h.HandleListSubscribers)
			r.Delete("/{email}", h.HandleUnsubscribe)

			r.Route("/import", func(r chi.Router) {
				r.Post("/", h.HandleImport)
				r.Get("/template", h.HandleImportTemplate)
				r.Get("/jobs", h.HandleListImportJobs)
				r.Get("/jobs/{jobID}", h.HandleGetImportJob)
			})
		})
	})

	return r
}
