package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/service"
)

type authUserCtxKey struct{}

// SessionCookieName is the browser session cookie set at login.
const SessionCookieName = "classpad_session"

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":              true,
	"/health/ready":        true,
	"/api/v1/auth/register": true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/refresh":  true,
}

// Auth validates request credentials and injects the user into the
// context. Three credential sources are accepted, in order:
//
//   - Authorization: Bearer <jwt> for API clients
//   - ?token=<jwt> on /ws paths, because browsers cannot set headers on
//     WebSocket upgrades
//   - the signed session cookie, as a browser fallback
func Auth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" && strings.HasPrefix(r.URL.Path, "/ws") {
				token = r.URL.Query().Get("token")
			}

			if token != "" {
				claims, err := authSvc.ValidateAccessToken(token)
				if err != nil {
					unauthorized(w, err.Error())
					return
				}
				u := &user.User{
					ID:      claims.UserID,
					Email:   claims.Email,
					Name:    claims.Name,
					Role:    claims.Role,
					Enabled: true,
				}
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
				return
			}

			// Cookie fallback. The cookie only carries identity, so the
			// user record is loaded to pick up role and enabled state.
			if c, err := r.Cookie(SessionCookieName); err == nil {
				userID, err := authSvc.VerifySessionCookie(c.Value)
				if err != nil {
					unauthorized(w, err.Error())
					return
				}
				u, err := authSvc.GetUser(r.Context(), userID)
				if err != nil || !u.Enabled {
					unauthorized(w, "unknown or disabled account")
					return
				}
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
				return
			}

			unauthorized(w, "authorization required")
		})
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// WithUser injects a user into the context. Exported for handler tests.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return withUser(ctx, u)
}

func withUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	token := strings.TrimPrefix(h, "Bearer ")
	if token == h {
		return ""
	}
	return token
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
