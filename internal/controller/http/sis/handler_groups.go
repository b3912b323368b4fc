package sis

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/repositories/groups"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createGroupRequest struct {
	Name       string  `json:"name"`
	SubjectID  string  `json:"subjectId"`
	LecturerID *string `json:"lecturerId"`
}

// listGroups filters by ?lecturerId= or ?studentId= when given.
func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	var (
		items []*groups.Group
		err   error
	)
	q := r.URL.Query()
	switch {
	case q.Get("lecturerId") != "":
		items, err = h.groups.ListByLecturer(r.Context(), q.Get("lecturerId"))
	case q.Get("studentId") != "":
		items, err = h.groups.ListByStudent(r.Context(), q.Get("studentId"))
	default:
		items, err = h.groups.List(r.Context())
	}
	if err != nil {
		writeErr(w, "listGroups", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decode(w, r, "createGroup", &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.SubjectID == "" {
		http.Error(w, "name and subjectId are required", http.StatusBadRequest)
		return
	}
	if req.LecturerID != nil && *req.LecturerID == "" {
		req.LecturerID = nil
	}
	g, err := h.groups.Create(r.Context(), req.Name, req.SubjectID, req.LecturerID)
	if err != nil {
		writeErr(w, "createGroup", err)
		return
	}
	logger.Debug("createGroup: created id=%s subject=%s", g.ID, g.SubjectID)
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "getGroup", err)
		return
	}
	if g == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	var p groups.Patch
	if !decode(w, r, "updateGroup", &p) {
		return
	}
	g, err := h.groups.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeErr(w, "updateGroup", err)
		return
	}
	if g == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	ok, err := h.groups.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "deleteGroup", err)
		return
	}
	noContent(w, r, ok)
}

func (h *Handler) addStudent(w http.ResponseWriter, r *http.Request) {
	groupID, studentID := chi.URLParam(r, "id"), chi.URLParam(r, "studentId")
	ok, err := h.groups.AddStudent(r.Context(), groupID, studentID)
	if err != nil {
		writeErr(w, "addStudent", err)
		return
	}
	logger.Debug("addStudent: group=%s student=%s ok=%v", groupID, studentID, ok)
	noContent(w, r, ok)
}

func (h *Handler) removeStudent(w http.ResponseWriter, r *http.Request) {
	groupID, studentID := chi.URLParam(r, "id"), chi.URLParam(r, "studentId")
	ok, err := h.groups.RemoveStudent(r.Context(), groupID, studentID)
	if err != nil {
		writeErr(w, "removeStudent", err)
		return
	}
	logger.Debug("removeStudent: group=%s student=%s ok=%v", groupID, studentID, ok)
	noContent(w, r, ok)
}

func (h *Handler) changeLecturer(w http.ResponseWriter, r *http.Request) {
	groupID, lecturerID := chi.URLParam(r, "id"), chi.URLParam(r, "lecturerId")
	ok, err := h.groups.ChangeLecturer(r.Context(), groupID, lecturerID)
	if err != nil {
		writeErr(w, "changeLecturer", err)
		return
	}
	noContent(w, r, ok)
}

// exportGrades buffers the workbook so a missing group can still be a 404.
func (h *Handler) exportGrades(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	var buf bytes.Buffer
	ok, err := h.grades.ExportGroupSheet(r.Context(), groupID, &buf)
	if err != nil {
		writeErr(w, "exportGrades", err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="grades-`+groupID+`.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}
