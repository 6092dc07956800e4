package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photo-dedup/internal/web/handlers"
	"github.com/kozaktomas/photo-dedup/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	scansHandler := handlers.NewScansHandler(s.config, s.scanManager, s.factory)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Event stream stays open across batches
		r.Get("/scans/{scanId}/events", scansHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(5 * time.Minute))

			// Duplicate-check scans
			r.Get("/scans", scansHandler.List)
			r.Post("/scans", scansHandler.Create)
			r.Get("/scans/{scanId}", scansHandler.Get)
			r.Delete("/scans/{scanId}", scansHandler.Cancel)
			r.Post("/scans/{scanId}/next", scansHandler.Next)
			r.Get("/scans/{scanId}/groups/{index}", scansHandler.Group)
			r.Post("/scans/{scanId}/groups/{index}/delete", scansHandler.DeleteGroup)

			// Deletion log
			r.Get("/deletions", handlers.ListDeletions)
		})
	})
}
