package sis

import (
	"net/http"
	"strings"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type actionRequest struct {
	OOBCode     string `json:"oobCode"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, "login", &req) {
		return
	}
	sess := h.session.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if sess == nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, "verify", &req) {
		return
	}
	u := h.session.VerifyToken(r.Context(), req.Token)
	if u == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, "logout", &req) {
		return
	}
	if err := h.session.Logout(r.Context(), req.Token); err != nil {
		writeErr(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, "passwordReset", &req) {
		return
	}
	link, err := h.session.PasswordResetLink(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		writeErr(w, "passwordReset", err)
		return
	}
	logger.Debug("passwordReset: link issued for %s", req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (h *Handler) emailVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, "emailVerification", &req) {
		return
	}
	link, err := h.session.EmailVerificationLink(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		writeErr(w, "emailVerification", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (h *Handler) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decode(w, r, "confirmPasswordReset", &req) {
		return
	}
	if req.OOBCode == "" || req.NewPassword == "" {
		http.Error(w, "oobCode and newPassword are required", http.StatusBadRequest)
		return
	}
	if err := h.session.ConfirmPasswordReset(r.Context(), req.OOBCode, req.NewPassword); err != nil {
		writeErr(w, "confirmPasswordReset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decode(w, r, "confirmEmailVerification", &req) {
		return
	}
	if req.OOBCode == "" {
		http.Error(w, "oobCode is required", http.StatusBadRequest)
		return
	}
	if err := h.session.ConfirmEmailVerification(r.Context(), req.OOBCode); err != nil {
		writeErr(w, "confirmEmailVerification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
