// Package storetest provides an in-memory store.Repository for tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/store"
)

var _ store.Repository = (*Repo)(nil)

type progressKey struct {
	userID string
	kind   domain.ContentKind
	slug   string
}

// Repo is a map-backed fake repository. Use Fail to make every call fail.
type Repo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	progress map[progressKey]*domain.Progress

	err   error
	saves int
}

// New returns an empty fake repository.
func New() *Repo {
	return &Repo{
		users:    make(map[string]*domain.User),
		progress: make(map[progressKey]*domain.Progress),
	}
}

func (f *Repo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *Repo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *user
	if existing := f.users[user.UserID]; existing != nil {
		cp.TeacherMode = existing.TeacherMode
	}
	f.users[user.UserID] = &cp
	return nil
}

func (f *Repo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if user := f.users[userID]; user != nil {
		user.LastSeenAt = lastSeen
	}
	return nil
}

func (f *Repo) SetTeacherMode(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	user := f.users[userID]
	if user == nil {
		return errors.New("user not found")
	}
	user.TeacherMode = enabled
	return nil
}

func (f *Repo) GetProgress(_ context.Context, userID string, kind domain.ContentKind, slug string) (*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := f.progress[progressKey{userID, kind, slug}]
	if p == nil {
		return nil, nil
	}
	return clone(p), nil
}

func (f *Repo) ListProgress(_ context.Context, userID string, kind domain.ContentKind) ([]*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Progress
	for k, p := range f.progress {
		if k.userID == userID && k.kind == kind {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (f *Repo) SaveProgress(_ context.Context, p *domain.Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves++
	f.progress[progressKey{p.UserID, p.Kind, p.Slug}] = clone(p)
	return nil
}

func (f *Repo) DeleteProgress(_ context.Context, userID string, kind domain.ContentKind, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.progress, progressKey{userID, kind, slug})
	return nil
}

func (f *Repo) DeleteInactiveUsers(_ context.Context, ttl time.Duration) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, 0, f.err
	}
	threshold := time.Now().Add(-ttl)
	var users, progress int64
	for id, u := range f.users {
		if !u.LastSeenAt.Before(threshold) {
			continue
		}
		delete(f.users, id)
		users++
		for k := range f.progress {
			if k.userID == id {
				delete(f.progress, k)
				progress++
			}
		}
	}
	return users, progress, nil
}

func (f *Repo) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Repo) Close() error { return nil }

// SaveCount returns how many progress writes succeeded.
func (f *Repo) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// Fail sets or clears the error returned by every call.
func (f *Repo) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func clone(p *domain.Progress) *domain.Progress {
	cp := *p
	cp.Completed = append([]string{}, p.Completed...)
	cp.Manual = append([]string{}, p.Manual...)
	return &cp
}
