package progress

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/evaluator"
	"github.com/ashureev/codeando/internal/metrics"
	"github.com/ashureev/codeando/internal/store"
)

var (
	// ErrTeacherModeRequired is returned when a manual toggle is attempted by a
	// learner without teacher mode.
	ErrTeacherModeRequired = errors.New("teacher mode required")
	// ErrUnknownChallenge is returned when a challenge ID does not belong to the
	// lesson or project.
	ErrUnknownChallenge = errors.New("unknown challenge")
	// ErrNoSolution is returned when no solution was authored.
	ErrNoSolution = errors.New("no solution available")
)

// CatalogSource provides the currently loaded catalog.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Result is the outcome of evaluating a buffer pair against one lesson or project.
type Result struct {
	Completed  []string `json:"completed"`
	Auto       []string `json:"auto"`
	Manual     []string `json:"manual"`
	Percentage int      `json:"percentage"`
}

// State is the playground state of a learner: buffers plus their evaluation.
type State struct {
	Kind domain.ContentKind `json:"kind"`
	Slug string             `json:"slug"`
	domain.Code
	Result
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Saved     bool       `json:"saved"`
}

const lockStripes = 64

// Tracker evaluates learner buffers and persists their progress.
type Tracker struct {
	repo    store.Repository
	catalog CatalogSource
	eval    *evaluator.Evaluator
	metrics *metrics.Metrics
	now     func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewTracker creates a progress tracker.
func NewTracker(repo store.Repository, source CatalogSource, eval *evaluator.Evaluator, m *metrics.Metrics) *Tracker {
	if eval == nil {
		eval = evaluator.Default()
	}
	return &Tracker{
		repo:    repo,
		catalog: source,
		eval:    eval,
		metrics: m,
		now:     time.Now,
	}
}

// lock serializes read-modify-write cycles on one progress record.
func (t *Tracker) lock(userID string, kind domain.ContentKind, slug string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + "\x00" + string(kind) + "\x00" + slug))
	mu := &t.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Entry looks up a lesson or project in the current catalog.
func (t *Tracker) Entry(kind domain.ContentKind, slug string) (*domain.Entry, error) {
	return t.catalog.Current().Entry(kind, slug)
}

// Evaluate checks buffers against an entry without saving. The learner's saved
// manual overlay is included when userID is set.
func (t *Tracker) Evaluate(ctx context.Context, userID string, kind domain.ContentKind, slug string, code domain.Code) (*Result, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	var manual []string
	if userID != "" {
		rec, err := t.repo.GetProgress(ctx, userID, kind, slug)
		if err != nil {
			return nil, fmt.Errorf("get progress: %w", err)
		}
		if rec != nil {
			manual = rec.Manual
		}
	}
	auto := t.evaluate(entry, code, "http")
	res := newResult(entry, auto, manual)
	return &res, nil
}

// Get returns the saved state, or the starter code when nothing was saved.
func (t *Tracker) Get(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	rec, err := t.repo.GetProgress(ctx, userID, kind, slug)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if rec == nil {
		return &State{
			Kind:   kind,
			Slug:   slug,
			Code:   entry.Starter,
			Result: newResult(entry, nil, nil),
		}, nil
	}
	return stateOf(entry, rec), nil
}

// Update evaluates the learner's buffers and saves them. The manual overlay is kept.
func (t *Tracker) Update(ctx context.Context, userID string, kind domain.ContentKind, slug string, code domain.Code, source string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	auto := t.evaluate(entry, code, source)
	return t.save(ctx, userID, entry, func(rec *domain.Progress) {
		rec.HTML = code.HTML
		rec.CSS = code.CSS
		rec.Completed = auto
	})
}

// Reset restores the starter code and clears both completion sets.
func (t *Tracker) Reset(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	auto := t.evaluate(entry, entry.Starter, "reset")
	state, err := t.save(ctx, userID, entry, func(rec *domain.Progress) {
		rec.HTML = entry.Starter.HTML
		rec.CSS = entry.Starter.CSS
		rec.Completed = auto
		rec.Manual = []string{}
	})
	if err == nil && t.metrics != nil {
		t.metrics.ProgressResets.WithLabelValues(string(kind), "starter").Inc()
	}
	return state, err
}

// Forget deletes the saved record and returns the unsaved starter state.
func (t *Tracker) Forget(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	unlock := t.lock(userID, kind, slug)
	err = t.repo.DeleteProgress(ctx, userID, kind, slug)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("delete progress: %w", err)
	}
	return &State{
		Kind:   kind,
		Slug:   slug,
		Code:   entry.Starter,
		Result: newResult(entry, nil, nil),
	}, nil
}

// ApplySolution replaces the buffers with the authored solution.
func (t *Tracker) ApplySolution(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	if !entry.HasSolution() {
		return nil, fmt.Errorf("%s %q: %w", kind, slug, ErrNoSolution)
	}
	auto := t.evaluate(entry, entry.Solution, "solution")
	state, err := t.save(ctx, userID, entry, func(rec *domain.Progress) {
		rec.HTML = entry.Solution.HTML
		rec.CSS = entry.Solution.CSS
		rec.Completed = auto
	})
	if err == nil && t.metrics != nil {
		t.metrics.ProgressResets.WithLabelValues(string(kind), "solution").Inc()
	}
	return state, err
}

// ToggleManual flips one challenge in the manual overlay. The learner must be
// in teacher mode.
func (t *Tracker) ToggleManual(ctx context.Context, userID string, kind domain.ContentKind, slug, challengeID string) (*State, error) {
	entry, err := t.Entry(kind, slug)
	if err != nil {
		return nil, err
	}
	if !hasChallenge(entry, challengeID) {
		return nil, fmt.Errorf("%s %q challenge %q: %w", kind, slug, challengeID, ErrUnknownChallenge)
	}

	user, err := t.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.TeacherMode {
		return nil, ErrTeacherModeRequired
	}

	state, err := t.save(ctx, userID, entry, func(rec *domain.Progress) {
		rec.Manual = ToggleManual(rec.Manual, challengeID)
	})
	if err == nil && t.metrics != nil {
		t.metrics.ManualToggles.WithLabelValues(string(kind)).Inc()
	}
	return state, err
}

// Items pairs every entry of a collection with the learner's saved progress.
func (t *Tracker) Items(ctx context.Context, userID string, kind domain.ContentKind) ([]Item, error) {
	records, err := t.repo.ListProgress(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	bySlug := make(map[string]*domain.Progress, len(records))
	for _, rec := range records {
		bySlug[rec.Slug] = rec
	}

	entries := t.catalog.Current().Entries(kind)
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{Entry: e, Progress: bySlug[e.Slug]})
	}
	return items, nil
}

// save loads the record (or starts one from the starter code), applies mutate
// and writes it back.
func (t *Tracker) save(ctx context.Context, userID string, entry *domain.Entry, mutate func(*domain.Progress)) (*State, error) {
	unlock := t.lock(userID, entry.Kind, entry.Slug)
	defer unlock()

	rec, err := t.repo.GetProgress(ctx, userID, entry.Kind, entry.Slug)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if rec == nil {
		rec = &domain.Progress{
			UserID:    userID,
			Kind:      entry.Kind,
			Slug:      entry.Slug,
			HTML:      entry.Starter.HTML,
			CSS:       entry.Starter.CSS,
			Completed: []string{},
			Manual:    []string{},
		}
	}
	mutate(rec)
	rec.UpdatedAt = t.now()

	err = t.repo.SaveProgress(ctx, rec)
	if t.metrics != nil {
		t.metrics.RecordSave(string(entry.Kind), err)
	}
	if err != nil {
		slog.Error("Failed to save progress", "user_id", userID, "kind", entry.Kind, "slug", entry.Slug, "error", err)
		return nil, fmt.Errorf("save progress: %w", err)
	}
	return stateOf(entry, rec), nil
}

func (t *Tracker) evaluate(entry *domain.Entry, code domain.Code, source string) []string {
	start := time.Now()
	auto := t.eval.All(entry.Challenges, code.HTML, code.CSS)
	if t.metrics != nil {
		t.metrics.RecordEvaluation(string(entry.Kind), source, len(auto), time.Since(start))
	}
	return auto
}

func stateOf(entry *domain.Entry, rec *domain.Progress) *State {
	updated := rec.UpdatedAt
	return &State{
		Kind:      entry.Kind,
		Slug:      entry.Slug,
		Code:      domain.Code{HTML: rec.HTML, CSS: rec.CSS},
		Result:    newResult(entry, rec.Completed, rec.Manual),
		UpdatedAt: &updated,
		Saved:     true,
	}
}

// newResult builds the visible completion of an entry. IDs that no longer
// exist in the content are dropped.
func newResult(entry *domain.Entry, auto, manual []string) Result {
	auto = known(entry, auto)
	manual = known(entry, manual)
	completed := Union(auto, manual)
	return Result{
		Completed:  completed,
		Auto:       auto,
		Manual:     manual,
		Percentage: Percentage(len(completed), len(entry.Challenges)),
	}
}

func known(entry *domain.Entry, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if hasChallenge(entry, id) {
			out = append(out, id)
		}
	}
	return out
}

func hasChallenge(entry *domain.Entry, id string) bool {
	for _, ch := range entry.Challenges {
		if ch.ID == id {
			return true
		}
	}
	return false
}
