// Package api provides HTTP handlers for the CodeAndo API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/ashureev/codeando/internal/share"
	"github.com/ashureev/codeando/internal/store"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBufferBytes is the per-buffer limit when none is configured.
const DefaultMaxBufferBytes = 256 << 10

// Options configures the API handlers.
type Options struct {
	FrontendURL    string
	MaxBufferBytes int64
	TeacherPINHash string
}

// Handler provides common handler utilities.
type Handler struct {
	repo    store.Repository
	catalog progress.CatalogSource
	tracker *progress.Tracker
	opts    Options
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, source progress.CatalogSource, tracker *progress.Tracker, opts Options) *Handler {
	if opts.MaxBufferBytes <= 0 {
		opts.MaxBufferBytes = DefaultMaxBufferBytes
	}
	return &Handler{
		repo:    repo,
		catalog: source,
		tracker: tracker,
		opts:    opts,
	}
}

// RegisterRoutes registers all /api routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)

		r.Get("/lessons", h.ListEntries(domain.KindLesson))
		r.Get("/lessons/{slug}", h.GetEntry(domain.KindLesson))
		r.Get("/lessons/{slug}/theory", h.GetMarkdown(domain.KindLesson))
		r.Get("/projects", h.ListEntries(domain.KindProject))
		r.Get("/projects/{slug}", h.GetEntry(domain.KindProject))
		r.Get("/projects/{slug}/brief", h.GetMarkdown(domain.KindProject))

		r.Post("/evaluate", h.Evaluate)

		r.Route("/progress/{kind}/{slug}", func(r chi.Router) {
			r.Get("/", h.GetProgress)
			r.Put("/", h.SaveProgress)
			r.Delete("/", h.DeleteProgress)
			r.Post("/reset", h.ResetProgress)
			r.Post("/solution", h.ApplySolution)
			r.Post("/manual/{challengeID}", h.ToggleManual)
		})
		r.Get("/stats/{kind}", h.GetStats)

		r.Get("/teacher-mode", h.GetTeacherMode)
		r.Put("/teacher-mode", h.SetTeacherMode)

		r.Post("/share", h.CreateShare)
		r.Get("/share", h.ResolveShare)
		r.Post("/preview", h.Preview)
		r.Get("/export/{kind}/{slug}", h.Export)
	})
}

// GetMe returns the current learner.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.UserID,
		"username":     user.Username,
		"teacher_mode": user.TeacherMode,
		"session_id":   identity.SessionIDFromContext(r.Context()),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, progress.ErrUnknownChallenge),
		errors.Is(err, progress.ErrNoSolution):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrTeacherModeRequired):
		return http.StatusForbidden
	case errors.Is(err, share.ErrInvalidPayload), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errBufferTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Server errors are logged and not exposed.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed",
			"user_id", identity.UserIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}

var (
	errBadRequest     = errors.New("bad request")
	errBufferTooLarge = errors.New("buffer too large")
)

// decodeJSON reads a size-limited JSON body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := 2*h.opts.MaxBufferBytes + 4<<10
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// checkCode rejects buffers over the configured size.
func (h *Handler) checkCode(code domain.Code) error {
	if int64(len(code.HTML)) > h.opts.MaxBufferBytes || int64(len(code.CSS)) > h.opts.MaxBufferBytes {
		return fmt.Errorf("%w: limit is %d bytes per buffer", errBufferTooLarge, h.opts.MaxBufferBytes)
	}
	return nil
}

// kindParam parses the {kind} URL parameter.
func kindParam(r *http.Request) (domain.ContentKind, error) {
	kind, err := domain.ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return kind, nil
}
