package sis

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/repositories/users"
)

// listUsers supports an optional ?email= lookup.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		u, err := h.users.GetByEmail(r.Context(), email)
		if err != nil {
			writeErr(w, "listUsers", err)
			return
		}
		items := []*users.User{}
		if u != nil {
			items = append(items, u)
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	items, err := h.users.List(r.Context())
	if err != nil {
		writeErr(w, "listUsers", err)
		return
	}
	logger.Debug("listUsers: returned %d items", len(items))
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req users.NewUser
	if !decode(w, r, "createUser", &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}
	if !req.Role.Valid() {
		http.Error(w, "role must be one of student, lecturer, registrar", http.StatusBadRequest)
		return
	}
	u, err := h.users.Create(r.Context(), req)
	if err != nil {
		writeErr(w, "createUser", err)
		return
	}
	logger.Debug("createUser: created id=%s role=%s", u.ID, u.Role)
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeErr(w, "getUser", err)
		return
	}
	if u == nil {
		logger.Debug("getUser: not found id=%s", id)
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p users.Patch
	if !decode(w, r, "updateUser", &p) {
		return
	}
	if p.Role != nil && !p.Role.Valid() {
		http.Error(w, "role must be one of student, lecturer, registrar", http.StatusBadRequest)
		return
	}
	u, err := h.users.Update(r.Context(), id, p)
	if err != nil {
		writeErr(w, "updateUser", err)
		return
	}
	if u == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeErr(w, "deleteUser", err)
		return
	}
	logger.Debug("deleteUser: id=%s ok=%v", id, ok)
	noContent(w, r, ok)
}
