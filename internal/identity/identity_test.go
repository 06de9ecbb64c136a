package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	userID, username, sessionID string
}

func serve(t *testing.T, repo *storetest.Repo, req *http.Request) (*httptest.ResponseRecorder, seen) {
	t.Helper()
	var got seen
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = seen{
			userID:    UserIDFromContext(r.Context()),
			username:  UsernameFromContext(r.Context()),
			sessionID: SessionIDFromContext(r.Context()),
		}
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, got
}

func anonCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == AnonCookieName {
			return c
		}
	}
	t.Fatal("anonymous cookie not set")
	return nil
}

func TestMiddleware_CreatesUser(t *testing.T) {
	repo := storetest.New()
	w, got := serve(t, repo, httptest.NewRequest(http.MethodGet, "/api/lessons", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, isValidAnonID(got.userID), got.userID)
	assert.Equal(t, DefaultSessionIDValue, got.sessionID)
	assert.Equal(t, "anon-"+got.userID[len(got.userID)-8:], got.username)

	c := anonCookie(t, w)
	assert.Equal(t, got.userID, c.Value)
	assert.True(t, c.HttpOnly)

	user, err := repo.GetUser(context.Background(), got.userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.TeacherMode)
}

func TestMiddleware_ReusesValidCookie(t *testing.T) {
	repo := storetest.New()
	id := "anon_0123456789abcdef0123456789abcdef"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	req.Header.Set(SessionHeaderName, "tab-1")
	_, got := serve(t, repo, req)

	assert.Equal(t, id, got.userID)
	assert.Equal(t, "tab-1", got.sessionID)
}

func TestMiddleware_ReplacesForgedCookie(t *testing.T) {
	repo := storetest.New()
	req := httptest.NewRequest(http.MethodGet, "/?session_id=bad%20id", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_../../etc"})
	_, got := serve(t, repo, req)

	assert.NotEqual(t, "anon_../../etc", got.userID)
	assert.True(t, isValidAnonID(got.userID))
	assert.Equal(t, DefaultSessionIDValue, got.sessionID)
}

func TestMiddleware_TouchesStaleLastSeen(t *testing.T) {
	repo := storetest.New()
	id := "anon_0123456789abcdef0123456789abcdef"
	old := time.Now().Add(-time.Hour)
	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{UserID: id, LastSeenAt: old}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	serve(t, repo, req)

	user, err := repo.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, user.LastSeenAt.After(old))
}

func TestMiddleware_StoreFailure(t *testing.T) {
	repo := storetest.New()
	repo.Fail(errors.New("db down"))

	called := false
	h := Middleware(repo, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, called)
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), "anon_x", "")
	assert.Equal(t, "anon_x", UserIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
	assert.Equal(t, "", UserIDFromContext(context.Background()))
}
