package sis

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/repositories/grades"
)

type createGradeRequest struct {
	StudentID string `json:"studentId"`
	GroupID   string `json:"groupId"`
	IssuerID  string `json:"issuerId"`
	Value     string `json:"value"`
}

func (h *Handler) listGrades(w http.ResponseWriter, r *http.Request) {
	var (
		items []*grades.Grade
		err   error
	)
	q := r.URL.Query()
	switch {
	case q.Get("studentId") != "":
		items, err = h.grades.ListByStudent(r.Context(), q.Get("studentId"))
	case q.Get("groupId") != "":
		items, err = h.grades.ListByGroup(r.Context(), q.Get("groupId"))
	default:
		items, err = h.grades.List(r.Context())
	}
	if err != nil {
		writeErr(w, "listGrades", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createGrade(w http.ResponseWriter, r *http.Request) {
	var req createGradeRequest
	if !decode(w, r, "createGrade", &req) {
		return
	}
	if req.StudentID == "" || req.GroupID == "" || req.IssuerID == "" || req.Value == "" {
		http.Error(w, "studentId, groupId, issuerId and value are required", http.StatusBadRequest)
		return
	}
	g, err := h.grades.Create(r.Context(), req.StudentID, req.GroupID, req.IssuerID, req.Value)
	if err != nil {
		writeErr(w, "createGrade", err)
		return
	}
	logger.Debug("createGrade: created id=%s student=%s group=%s", g.ID, g.StudentID, g.GroupID)
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) getGrade(w http.ResponseWriter, r *http.Request) {
	g, err := h.grades.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "getGrade", err)
		return
	}
	if g == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) updateGrade(w http.ResponseWriter, r *http.Request) {
	var p grades.Patch
	if !decode(w, r, "updateGrade", &p) {
		return
	}
	g, err := h.grades.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeErr(w, "updateGrade", err)
		return
	}
	if g == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) deleteGrade(w http.ResponseWriter, r *http.Request) {
	ok, err := h.grades.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "deleteGrade", err)
		return
	}
	noContent(w, r, ok)
}
