package api

import (
	"net/http"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/markdown"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/go-chi/chi/v5"
)

type entrySummary struct {
	*domain.Entry
	ChallengeCount int              `json:"challenge_count"`
	Progress       progress.Summary `json:"progress"`
	LastActivity   string           `json:"last_activity"`
}

type neighbor struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type entryDetail struct {
	*domain.Entry
	Markdown    string             `json:"markdown"`
	Checklist   []string           `json:"checklist"`
	Acceptance  []string           `json:"acceptance,omitempty"`
	Challenges  []domain.Challenge `json:"challenges"`
	Starter     domain.Code        `json:"starter"`
	HasSolution bool               `json:"has_solution"`
	Prev        *neighbor          `json:"prev,omitempty"`
	Next        *neighbor          `json:"next,omitempty"`
	Progress    progress.Summary   `json:"progress"`
}

func neighborOf(e *domain.Entry) *neighbor {
	if e == nil {
		return nil
	}
	return &neighbor{Slug: e.Slug, Title: e.Title}
}

// ListEntries returns the lessons or projects with the learner's progress.
func (h *Handler) ListEntries(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.tracker.Items(r.Context(), identity.UserIDFromContext(r.Context()), kind)
		if err != nil {
			fail(w, r, "List entries", err)
			return
		}

		now := time.Now()
		out := make([]entrySummary, 0, len(items))
		for _, it := range items {
			sum := it.Summary()
			out = append(out, entrySummary{
				Entry:          it.Entry,
				ChallengeCount: len(it.Entry.Challenges),
				Progress:       sum,
				LastActivity:   progress.RelativeTime(sum.LastUpdated, now),
			})
		}
		JSON(w, http.StatusOK, out)
	}
}

// GetEntry returns one lesson or project. Solution code is never included.
func (h *Handler) GetEntry(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		c := h.catalog.Current()

		entry, err := c.Entry(kind, slug)
		if err != nil {
			fail(w, r, "Get entry", err)
			return
		}
		prev, next, err := c.PrevNext(kind, slug)
		if err != nil {
			fail(w, r, "Get entry", err)
			return
		}
		rec, err := h.repo.GetProgress(r.Context(), identity.UserIDFromContext(r.Context()), kind, slug)
		if err != nil {
			fail(w, r, "Get entry", err)
			return
		}

		JSON(w, http.StatusOK, entryDetail{
			Entry:       entry,
			Markdown:    entry.Markdown,
			Checklist:   entry.Checklist,
			Acceptance:  entry.Acceptance,
			Challenges:  entry.Challenges,
			Starter:     entry.Starter,
			HasSolution: entry.HasSolution(),
			Prev:        neighborOf(prev),
			Next:        neighborOf(next),
			Progress:    progress.Summarize(rec, entry.Challenges),
		})
	}
}

// GetMarkdown returns the rendered theory of a lesson or brief of a project.
func (h *Handler) GetMarkdown(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.catalog.Current().Entry(kind, chi.URLParam(r, "slug"))
		if err != nil {
			fail(w, r, "Render markdown", err)
			return
		}
		JSON(w, http.StatusOK, map[string]string{
			"slug":  entry.Slug,
			"title": entry.Title,
			"html":  markdown.Render(entry.Markdown),
		})
	}
}
