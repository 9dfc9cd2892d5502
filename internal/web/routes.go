package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/condoplex/facegate/internal/web/handlers"
	"github.com/condoplex/facegate/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	enrollmentsHandler := handlers.NewEnrollmentsHandler(s.manager, s.service)
	verifyHandler := handlers.NewVerifyHandler(s.service)
	identifyHandler := handlers.NewIdentifyHandler(s.service)
	authHandler := handlers.NewAuthHandler(s.tokens)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Face login and session refresh are the entry points; nothing to
		// authenticate with yet.
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/auth/refresh", authHandler.Refresh)

		// Enrollment management and verification require a valid session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.tokens))

			r.Get("/enrollments", enrollmentsHandler.List)
			r.Get("/enrollments/{identityID}", enrollmentsHandler.Status)
			r.Put("/enrollments/{identityID}", enrollmentsHandler.Enroll)
			r.Delete("/enrollments/{identityID}", enrollmentsHandler.Clear)

			r.Post("/enrollments/{identityID}/verify", verifyHandler.Verify)
		})
	})
}
