package api

import (
	"net/http"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/go-chi/chi/v5"
)

type evaluateRequest struct {
	Kind string `json:"kind"`
	Slug string `json:"slug"`
	HTML string `json:"html"`
	CSS  string `json:"css"`
	Save bool   `json:"save"`
}

// Evaluate checks buffers against a lesson or project. Nothing is stored unless
// save is set.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		fail(w, r, "Evaluate", err)
		return
	}
	kind, err := domain.ParseContentKind(req.Kind)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	code := domain.Code{HTML: req.HTML, CSS: req.CSS}
	if err := h.checkCode(code); err != nil {
		fail(w, r, "Evaluate", err)
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if req.Save {
		state, err := h.tracker.Update(r.Context(), userID, kind, req.Slug, code, "http")
		if err != nil {
			fail(w, r, "Evaluate", err)
			return
		}
		JSON(w, http.StatusOK, state)
		return
	}

	res, err := h.tracker.Evaluate(r.Context(), userID, kind, req.Slug, code)
	if err != nil {
		fail(w, r, "Evaluate", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// GetProgress returns saved buffers, or the starter code.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Get progress", err)
		return
	}
	state, err := h.tracker.Get(r.Context(), identity.UserIDFromContext(r.Context()), kind, chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "Get progress", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// SaveProgress evaluates and stores the learner's buffers.
func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Save progress", err)
		return
	}
	var code domain.Code
	if err := h.decodeJSON(w, r, &code); err != nil {
		fail(w, r, "Save progress", err)
		return
	}
	if err := h.checkCode(code); err != nil {
		fail(w, r, "Save progress", err)
		return
	}

	state, err := h.tracker.Update(r.Context(), identity.UserIDFromContext(r.Context()), kind, chi.URLParam(r, "slug"), code, "http")
	if err != nil {
		fail(w, r, "Save progress", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// ResetProgress restores the starter code.
func (h *Handler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Reset progress", err)
		return
	}
	state, err := h.tracker.Reset(r.Context(), identity.UserIDFromContext(r.Context()), kind, chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "Reset progress", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// DeleteProgress forgets the saved buffers of one lesson or project.
func (h *Handler) DeleteProgress(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Delete progress", err)
		return
	}
	state, err := h.tracker.Forget(r.Context(), identity.UserIDFromContext(r.Context()), kind, chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "Delete progress", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// ApplySolution loads the authored solution into the learner's buffers.
func (h *Handler) ApplySolution(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Apply solution", err)
		return
	}
	state, err := h.tracker.ApplySolution(r.Context(), identity.UserIDFromContext(r.Context()), kind, chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "Apply solution", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// ToggleManual marks or unmarks a challenge by hand (teacher mode only).
func (h *Handler) ToggleManual(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Toggle challenge", err)
		return
	}
	state, err := h.tracker.ToggleManual(r.Context(), identity.UserIDFromContext(r.Context()),
		kind, chi.URLParam(r, "slug"), chi.URLParam(r, "challengeID"))
	if err != nil {
		fail(w, r, "Toggle challenge", err)
		return
	}
	JSON(w, http.StatusOK, state)
}

type entryRef struct {
	Kind  domain.ContentKind `json:"kind"`
	Slug  string             `json:"slug"`
	Title string             `json:"title"`
}

func refOf(e *domain.Entry) *entryRef {
	if e == nil {
		return nil
	}
	return &entryRef{Kind: e.Kind, Slug: e.Slug, Title: e.Title}
}

type statsResponse struct {
	progress.Stats
	StreakDays        int       `json:"streak_days"`
	LastActivityLabel string    `json:"last_activity_label"`
	Next              *entryRef `json:"next,omitempty"`
	LastTouched       *entryRef `json:"last_touched,omitempty"`
}

// GetStats aggregates the learner's progress over a collection.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Get stats", err)
		return
	}
	items, err := h.tracker.Items(r.Context(), identity.UserIDFromContext(r.Context()), kind)
	if err != nil {
		fail(w, r, "Get stats", err)
		return
	}

	var activity []time.Time
	for _, it := range items {
		if it.Progress != nil {
			activity = append(activity, it.Progress.UpdatedAt)
		}
	}

	now := time.Now()
	stats := progress.Aggregate(items)
	JSON(w, http.StatusOK, statsResponse{
		Stats:             stats,
		StreakDays:        progress.StreakDays(activity, now),
		LastActivityLabel: progress.RelativeTime(stats.LastActivity, now),
		Next:              refOf(progress.NextRecommended(items)),
		LastTouched:       refOf(progress.LastTouched(items)),
	})
}
