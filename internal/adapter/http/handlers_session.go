package http

import (
	"context"
	"net/http"

	"github.com/classpad/classpad/internal/domain/event"
	"github.com/classpad/classpad/internal/domain/session"
)

func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[session.CreateRequest](w, r)
	if !ok {
		return
	}

	sess, err := h.Sessions.Start(r.Context(), u.ID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sess, err := h.Sessions.Get(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessions, err := h.Sessions.ListBySection(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sess, err := h.Sessions.End(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) UpdateSessionPanels(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	panels, ok := readJSON[session.PanelConfig](w, r)
	if !ok {
		return
	}

	sess, err := h.Sessions.UpdatePanels(r.Context(), u.ID, urlParam(r, "id"), panels)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) AppendSnapshot(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[session.SnapshotRequest](w, r)
	if !ok {
		return
	}

	snap, err := h.Sessions.AppendSnapshot(r.Context(), u.ID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handlers) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	snap, err := h.Sessions.LatestSnapshot(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no snapshots yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SessionSocket attaches the caller to a session's realtime room after
// an authorization check. Presence events bracket the connection.
func (h *Handlers) SessionSocket(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID := urlParam(r, "id")

	if err := h.Sessions.Authorize(r.Context(), u.ID, sessionID); err != nil {
		writeDomainError(w, err, "session not found")
		return
	}

	h.Sessions.NotifyPresence(r.Context(), sessionID, u.ID, event.ParticipantJoined)

	// The request context dies with the connection; the leave event needs
	// one that survives it.
	leaveCtx := context.WithoutCancel(r.Context())
	h.Hub.Serve(w, r, event.SessionChannel(sessionID), func() {
		h.Sessions.NotifyPresence(leaveCtx, sessionID, u.ID, event.ParticipantLeft)
	})
}
