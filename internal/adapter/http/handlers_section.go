package http

import (
	"net/http"

	"github.com/classpad/classpad/internal/domain/class"
)

func (h *Handlers) CreateSection(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[class.CreateSectionRequest](w, r)
	if !ok {
		return
	}

	sec, err := h.Sections.Create(r.Context(), u.ID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (h *Handlers) ListSections(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sections, err := h.Sections.List(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	if sections == nil {
		sections = []class.Section{}
	}
	writeJSON(w, http.StatusOK, sections)
}

func (h *Handlers) GetSection(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sec, err := h.Sections.Get(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handlers) UpdateSection(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[class.UpdateSectionRequest](w, r)
	if !ok {
		return
	}

	sec, err := h.Sections.Update(r.Context(), u.ID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handlers) RotateSectionCode(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sec, err := h.Sections.RotateCode(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handlers) DeleteSection(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.Sections.Delete(r.Context(), u.ID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
