package http

import (
	"net/http"
	"time"

	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/middleware"
)

const refreshCookieName = "classpad_refresh"

// Register creates a new account. Only instructors and students may be
// self-registered; admins are created through the CLI.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r)
	if !ok {
		return
	}
	if req.Role == user.RoleAdmin {
		writeError(w, http.StatusForbidden, "cannot self-register as admin")
		return
	}

	u, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login authenticates and sets the refresh and session cookies.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r)
	if !ok {
		return
	}

	resp, rawRefresh, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.setAuthCookies(w, resp.User.ID, rawRefresh)
	writeJSON(w, http.StatusOK, resp)
}

// Refresh rotates the refresh token cookie and returns a new access token.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	resp, rawRefresh, err := h.Auth.RefreshTokens(r.Context(), c.Value)
	if err != nil {
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.setAuthCookies(w, resp.User.ID, rawRefresh)
	writeJSON(w, http.StatusOK, resp)
}

// Logout invalidates the caller's refresh tokens and clears cookies.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.Auth.Logout(r.Context(), u.ID); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- admin user management ---

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Auth.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err, "users not found")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.GetUser(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.UpdateRequest](w, r)
	if !ok {
		return
	}
	u, err := h.Auth.UpdateUser(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.DeleteUser(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- cookies ---

func (h *Handlers) setAuthCookies(w http.ResponseWriter, userID, rawRefresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    rawRefresh,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.AuthCfg.RefreshTokenExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    h.Auth.MintSessionCookie(userID),
		Path:     "/",
		MaxAge:   int(h.AuthCfg.CookieExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Path: "/api/v1/auth", Expires: expired, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookieName, Path: "/", Expires: expired, HttpOnly: true})
}
