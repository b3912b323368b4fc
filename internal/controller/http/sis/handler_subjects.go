package sis

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/repositories/subjects"
)

type createSubjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.subjects.List(r.Context())
	if err != nil {
		writeErr(w, "listSubjects", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if !decode(w, r, "createSubject", &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s, err := h.subjects.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeErr(w, "createSubject", err)
		return
	}
	logger.Debug("createSubject: created id=%s", s.ID)
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) getSubject(w http.ResponseWriter, r *http.Request) {
	s, err := h.subjects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "getSubject", err)
		return
	}
	if s == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateSubject(w http.ResponseWriter, r *http.Request) {
	var p subjects.Patch
	if !decode(w, r, "updateSubject", &p) {
		return
	}
	s, err := h.subjects.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeErr(w, "updateSubject", err)
		return
	}
	if s == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request) {
	ok, err := h.subjects.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "deleteSubject", err)
		return
	}
	noContent(w, r, ok)
}
