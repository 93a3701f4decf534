package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. Auth and
// rate limiting are applied by the caller; role checks happen here.
func MountRoutes(r chi.Router, h *Handlers) {
	instructors := middleware.RequireRole(user.RoleAdmin, user.RoleInstructor)
	admins := middleware.RequireRole(user.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)

		// User administration
		r.With(admins).Get("/users", h.ListUsers)
		r.With(admins).Get("/users/{id}", h.GetUser)
		r.With(admins).Put("/users/{id}", h.UpdateUser)
		r.With(admins).Delete("/users/{id}", h.DeleteUser)

		// Classes (instructor-owned)
		r.With(instructors).Post("/classes", h.CreateClass)
		r.With(instructors).Get("/classes", h.ListClasses)
		r.With(instructors).Get("/classes/{id}", h.GetClass)
		r.With(instructors).Put("/classes/{id}", h.UpdateClass)
		r.With(instructors).Post("/classes/{id}/archive", h.ArchiveClass)
		r.With(instructors).Delete("/classes/{id}", h.DeleteClass)

		// Sections (nested under classes, direct access by ID)
		r.With(instructors).Post("/classes/{id}/sections", h.CreateSection)
		r.With(instructors).Get("/classes/{id}/sections", h.ListSections)
		r.With(instructors).Get("/sections/{id}", h.GetSection)
		r.With(instructors).Put("/sections/{id}", h.UpdateSection)
		r.With(instructors).Post("/sections/{id}/rotate-code", h.RotateSectionCode)
		r.With(instructors).Delete("/sections/{id}", h.DeleteSection)

		// Enrollment
		r.Post("/join", h.Join)
		r.Get("/me/sections", h.MySections)
		r.Post("/sections/{id}/leave", h.LeaveSection)
		r.With(instructors).Get("/sections/{id}/roster", h.Roster)
		r.With(instructors).Delete("/sections/{id}/roster/{userID}", h.RemoveFromRoster)

		// Sessions
		r.With(instructors).Post("/sections/{id}/sessions", h.StartSession)
		r.Get("/sections/{id}/sessions", h.ListSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.With(instructors).Post("/sessions/{id}/end", h.EndSession)
		r.With(instructors).Put("/sessions/{id}/panels", h.UpdateSessionPanels)
		r.With(instructors).Post("/sessions/{id}/snapshots", h.AppendSnapshot)
		r.Get("/sessions/{id}/snapshots/latest", h.LatestSnapshot)
	})

	// Realtime
	r.Get("/ws/sessions/{id}", h.SessionSocket)
}
