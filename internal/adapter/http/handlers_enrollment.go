package http

import (
	"net/http"

	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
)

// joinResponse pairs the enrollment with the section it targets so the
// client can render the class immediately after joining.
type joinResponse struct {
	Enrollment enrollment.Enrollment `json:"enrollment"`
	Section    class.Section         `json:"section"`
}

func (h *Handlers) Join(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[enrollment.JoinRequest](w, r)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, sec, err := h.Enrollments.Join(r.Context(), u.ID, req)
	if err != nil {
		writeDomainError(w, err, "unknown join code")
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Enrollment: *e, Section: *sec})
}

func (h *Handlers) LeaveSection(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.Enrollments.Leave(r.Context(), u.ID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "enrollment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MySections(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sections, err := h.Enrollments.MySections(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err, "sections not found")
		return
	}
	if sections == nil {
		sections = []class.Section{}
	}
	writeJSON(w, http.StatusOK, sections)
}

func (h *Handlers) Roster(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	roster, err := h.Enrollments.Roster(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	if roster == nil {
		roster = []enrollment.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *Handlers) RemoveFromRoster(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	err := h.Enrollments.Remove(r.Context(), u.ID, urlParam(r, "id"), urlParam(r, "userID"))
	if err != nil {
		writeDomainError(w, err, "enrollment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
