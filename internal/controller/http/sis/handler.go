package sis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/sis/be/internal/service"
	"github.com/quipper/poc/sis/be/pkg/common/keys"
	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/identity"
	"github.com/quipper/poc/sis/be/pkg/repositories"
)

// Services are the collaborators behind the HTTP surface.
type Services struct {
	Users    *service.UserService
	Subjects *service.SubjectService
	Groups   *service.GroupService
	Grades   *service.GradeService
	Session  *service.SessionService
	// Health reports backing-store reachability.
	Health func(ctx context.Context) error
	// Keys is nil when sessions are signed by an external provider.
	Keys *keys.Set
}

type Handler struct {
	users    *service.UserService
	subjects *service.SubjectService
	groups   *service.GroupService
	grades   *service.GradeService
	session  *service.SessionService
	ping     func(ctx context.Context) error
	keys     *keys.Set
}

func NewHandler(s Services) *Handler {
	return &Handler{
		users:    s.Users,
		subjects: s.Subjects,
		groups:   s.Groups,
		grades:   s.Grades,
		session:  s.Session,
		ping:     s.Health,
		keys:     s.Keys,
	}
}

// Router returns a chi-based router for the /api endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/health", h.health)
	r.Get("/.well-known/jwks.json", h.jwks)

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Patch("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})

	r.Route("/api/subjects", func(r chi.Router) {
		r.Get("/", h.listSubjects)
		r.Post("/", h.createSubject)
		r.Get("/{id}", h.getSubject)
		r.Patch("/{id}", h.updateSubject)
		r.Delete("/{id}", h.deleteSubject)
	})

	r.Route("/api/groups", func(r chi.Router) {
		r.Get("/", h.listGroups)
		r.Post("/", h.createGroup)
		r.Get("/{id}", h.getGroup)
		r.Patch("/{id}", h.updateGroup)
		r.Delete("/{id}", h.deleteGroup)
		r.Post("/{id}/students/{studentId}", h.addStudent)
		r.Delete("/{id}/students/{studentId}", h.removeStudent)
		r.Put("/{id}/lecturer/{lecturerId}", h.changeLecturer)
		r.Get("/{id}/grades.xlsx", h.exportGrades)
	})

	r.Route("/api/grades", func(r chi.Router) {
		r.Get("/", h.listGrades)
		r.Post("/", h.createGrade)
		r.Get("/{id}", h.getGrade)
		r.Patch("/{id}", h.updateGrade)
		r.Delete("/{id}", h.deleteGrade)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/verify", h.verify)
		r.Post("/logout", h.logout)
		r.Post("/password-reset", h.passwordReset)
		r.Post("/email-verification", h.emailVerification)
		r.Post("/actions/reset-password", h.confirmPasswordReset)
		r.Post("/actions/verify-email", h.confirmEmailVerification)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// jwks serves the public keys that verify locally issued session tokens.
func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		http.NotFound(w, r)
		return
	}
	data, err := h.keys.JWKSJSON()
	if err != nil {
		http.Error(w, "failed to get JWKS", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug("%s: invalid JSON: %v", op, err)
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain and identity errors to status codes; anything
// unrecognised is an upstream failure.
func writeErr(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrGradeNotFound), errors.Is(err, identity.ErrAccountNotFound):
		status = http.StatusNotFound
	case repositories.IsValidation(err), errors.Is(err, service.ErrNoUpdateFields):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSubjectInUse), errors.Is(err, service.ErrGroupInUse), errors.Is(err, identity.ErrEmailExists):
		status = http.StatusConflict
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrLogoutUnsupported), errors.Is(err, service.ErrActionsUnsupported):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		logger.Error("%s: %v", op, err)
		http.Error(w, "internal error", status)
		return
	}
	logger.Debug("%s: %v", op, err)
	http.Error(w, err.Error(), status)
}

// noContent writes 204, or 404 when the target was missing.
func noContent(w http.ResponseWriter, r *http.Request, ok bool) {
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
