package http

import (
	"net/http"

	"github.com/classpad/classpad/internal/adapter/ws"
	"github.com/classpad/classpad/internal/config"
	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/middleware"
	"github.com/classpad/classpad/internal/service"
)

// Handlers bundles the services behind the HTTP API.
type Handlers struct {
	Auth        *service.AuthService
	Classes     *service.ClassService
	Sections    *service.SectionService
	Enrollments *service.EnrollmentService
	Sessions    *service.SessionService
	Hub         *ws.Hub
	AuthCfg     config.Auth
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	return u, true
}
