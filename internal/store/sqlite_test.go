package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo Repository, id string, lastSeen time.Time) {
	t.Helper()
	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{
		UserID:     id,
		Username:   "anon-" + id,
		LastSeenAt: lastSeen,
		CreatedAt:  lastSeen,
		UpdatedAt:  lastSeen,
	}))
}

func TestSQLite_UserRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	seedUser(t, repo, "u1", now)

	got, err = repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "anon-u1", got.Username)
	assert.False(t, got.TeacherMode)
	assert.Equal(t, now.Unix(), got.LastSeenAt.Unix())
}

func TestSQLite_TeacherMode(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", time.Now())

	require.NoError(t, repo.SetTeacherMode(ctx, "u1", true))
	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.TeacherMode)

	// Upsert must not reset the flag.
	seedUser(t, repo, "u1", time.Now())
	got, err = repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.TeacherMode)

	assert.Error(t, repo.SetTeacherMode(ctx, "ghost", true))
}

func TestSQLite_ProgressRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", time.Now())

	got, err := repo.GetProgress(ctx, "u1", domain.KindLesson, "01-html-base")
	require.NoError(t, err)
	assert.Nil(t, got)

	saved := &domain.Progress{
		UserID:    "u1",
		Kind:      domain.KindLesson,
		Slug:      "01-html-base",
		HTML:      "<main></main>",
		CSS:       "body{}",
		Completed: []string{"ch1", "ch3"},
		UpdatedAt: time.UnixMilli(1_700_000_000_123),
	}
	require.NoError(t, repo.SaveProgress(ctx, saved))

	got, err = repo.GetProgress(ctx, "u1", domain.KindLesson, "01-html-base")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"ch1", "ch3"}, got.Completed)
	assert.Equal(t, []string{}, got.Manual)
	assert.Equal(t, int64(1_700_000_000_123), got.UpdatedAt.UnixMilli())

	saved.Manual = []string{"ch2"}
	saved.HTML = "<header></header>"
	require.NoError(t, repo.SaveProgress(ctx, saved))
	got, err = repo.GetProgress(ctx, "u1", domain.KindLesson, "01-html-base")
	require.NoError(t, err)
	assert.Equal(t, "<header></header>", got.HTML)
	assert.Equal(t, []string{"ch2"}, got.Manual)
}

func TestSQLite_ListAndDeleteProgress(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", time.Now())

	for _, p := range []*domain.Progress{
		{UserID: "u1", Kind: domain.KindLesson, Slug: "b"},
		{UserID: "u1", Kind: domain.KindLesson, Slug: "a"},
		{UserID: "u1", Kind: domain.KindProject, Slug: "a"},
	} {
		require.NoError(t, repo.SaveProgress(ctx, p))
	}

	lessons, err := repo.ListProgress(ctx, "u1", domain.KindLesson)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "a", lessons[0].Slug)
	assert.Equal(t, "b", lessons[1].Slug)

	require.NoError(t, repo.DeleteProgress(ctx, "u1", domain.KindLesson, "a"))
	lessons, err = repo.ListProgress(ctx, "u1", domain.KindLesson)
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	projects, err := repo.ListProgress(ctx, "u1", domain.KindProject)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestSQLite_DeleteInactiveUsers(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	seedUser(t, repo, "old", time.Now().Add(-48*time.Hour))
	seedUser(t, repo, "fresh", time.Now())
	require.NoError(t, repo.SaveProgress(ctx, &domain.Progress{UserID: "old", Kind: domain.KindLesson, Slug: "x"}))
	require.NoError(t, repo.SaveProgress(ctx, &domain.Progress{UserID: "fresh", Kind: domain.KindLesson, Slug: "x"}))

	users, progress, err := repo.DeleteInactiveUsers(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), progress)

	got, err := repo.GetUser(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	kept, err := repo.GetProgress(ctx, "fresh", domain.KindLesson, "x")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
