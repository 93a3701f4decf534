package http

import (
	"net/http"

	"github.com/classpad/classpad/internal/domain/class"
)

func (h *Handlers) CreateClass(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[class.CreateRequest](w, r)
	if !ok {
		return
	}

	c, err := h.Classes.Create(r.Context(), u.ID, req)
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) ListClasses(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	classes, err := h.Classes.List(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err, "classes not found")
		return
	}
	if classes == nil {
		classes = []class.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

func (h *Handlers) GetClass(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	c, err := h.Classes.Get(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateClass(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[class.UpdateRequest](w, r)
	if !ok {
		return
	}

	c, err := h.Classes.Update(r.Context(), u.ID, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) ArchiveClass(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	c, err := h.Classes.Archive(r.Context(), u.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) DeleteClass(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.Classes.Delete(r.Context(), u.ID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "class not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
