//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/evaluator"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/metrics"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/ashureev/codeando/internal/store/storetest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testUserID = "anon_0123456789abcdef0123456789abcdef"

const testContent = `
lessons:
  - slug: html-base
    title: HTML base
    order: 1
    theoryMd: "# Estructura\n\nUsa <main>."
    checklist: [Doctype]
    starter:
      html: "<p>hola</p>"
    solution:
      html: "<!DOCTYPE html><main></main>"
    challenges:
      - id: ch1
        title: Doctype
        checks:
          - type: html_includes
            value: "<!DOCTYPE html>"
      - id: ch2
        title: Main
        checks:
          - type: html_regex
            value: "<main[^>]*>"
  - slug: flexbox
    title: Flexbox
    order: 2
    challenges:
      - id: ch1
        checks:
          - type: css_regex
            value: "display\\s*:\\s*flex"
projects:
  - slug: landing
    title: Landing
    order: 1
    briefMd: "Construye una landing."
    acceptance: [Responsive]
    challenges:
      - id: ch1
        checks:
          - type: html_includes
            value: "<header"
`

type testServer struct {
	*httptest.Server
	repo *storetest.Repo
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	reg, err := catalog.NewRegistry(fstest.MapFS{"content.yaml": {Data: []byte(testContent)}})
	require.NoError(t, err)

	repo := storetest.New()
	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{UserID: testUserID}))

	tracker := progress.NewTracker(repo, reg, evaluator.Default(), metrics.NewMetrics())
	h := NewHandler(repo, reg, tracker, opts)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), testUserID, "tab")))
		})
	})
	NewHealthHandler(repo, reg).RegisterHealth(r)
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorStatus(catalog.ErrNotFound))
	assert.Equal(t, http.StatusForbidden, errorStatus(progress.ErrTeacherModeRequired))
	assert.Equal(t, http.StatusRequestEntityTooLarge, errorStatus(errBufferTooLarge))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("boom")))
}

func TestListAndGetEntries(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodGet, "/api/lessons", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]map[string]interface{}](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, "html-base", list[0]["slug"])
	assert.Equal(t, float64(2), list[0]["challenge_count"])
	assert.Equal(t, "Nunca", list[0]["last_activity"])

	resp = s.do(t, http.MethodGet, "/api/lessons/html-base", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[map[string]interface{}](t, resp)
	assert.Equal(t, true, detail["has_solution"])
	assert.NotContains(t, detail, "solution")
	assert.Equal(t, "flexbox", detail["next"].(map[string]interface{})["slug"])
	assert.NotContains(t, detail, "prev")

	resp = s.do(t, http.MethodGet, "/api/projects/landing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	project := decode[map[string]interface{}](t, resp)
	assert.Equal(t, []interface{}{"Responsive"}, project["acceptance"])

	resp = s.do(t, http.MethodGet, "/api/lessons/landing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMarkdown(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodGet, "/api/lessons/html-base/theory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["html"], "<h1")
	assert.Contains(t, body["html"], "Estructura")

	resp = s.do(t, http.MethodGet, "/api/projects/landing/brief", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[map[string]string](t, resp)
	assert.Contains(t, body["html"], "Construye una landing.")
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{
		"kind": "lesson", "slug": "html-base", "html": "<!DOCTYPE html><main>",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[progress.Result](t, resp)
	assert.Equal(t, []string{"ch1", "ch2"}, res.Completed)
	assert.Equal(t, 100, res.Percentage)
	assert.Equal(t, 0, s.repo.SaveCount())

	resp = s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{
		"kind": "lessons", "slug": "html-base", "html": "<!DOCTYPE html>", "save": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[progress.State](t, resp)
	assert.True(t, state.Saved)
	assert.Equal(t, 50, state.Percentage)
	assert.Equal(t, 1, s.repo.SaveCount())

	resp = s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{"kind": "quiz", "slug": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{"kind": "lesson", "slug": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvaluate_BufferLimit(t *testing.T) {
	s := newTestServer(t, Options{MaxBufferBytes: 16})

	resp := s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{
		"kind": "lesson", "slug": "html-base", "html": strings.Repeat("x", 17),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/evaluate", map[string]interface{}{
		"kind": "lesson", "slug": "html-base", "html": strings.Repeat("x", 10<<10),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestProgressLifecycle(t *testing.T) {
	s := newTestServer(t, Options{})
	base := "/api/progress/lesson/html-base"

	resp := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[progress.State](t, resp)
	assert.False(t, state.Saved)
	assert.Equal(t, "<p>hola</p>", state.HTML)

	resp = s.do(t, http.MethodPut, base, domain.Code{HTML: "<!DOCTYPE html>", CSS: "p{}"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[progress.State](t, resp)
	assert.Equal(t, []string{"ch1"}, state.Completed)

	resp = s.do(t, http.MethodPost, base+"/solution", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[progress.State](t, resp)
	assert.Equal(t, 100, state.Percentage)

	resp = s.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[progress.State](t, resp)
	assert.Equal(t, "<p>hola</p>", state.HTML)
	assert.Empty(t, state.Completed)

	resp = s.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[progress.State](t, resp)
	assert.False(t, state.Saved)
	rec, err := s.repo.GetProgress(context.Background(), testUserID, domain.KindLesson, "html-base")
	require.NoError(t, err)
	assert.Nil(t, rec)

	resp = s.do(t, http.MethodPost, "/api/progress/lesson/flexbox/solution", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/progress/quiz/html-base", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualToggleNeedsTeacherMode(t *testing.T) {
	s := newTestServer(t, Options{})
	path := "/api/progress/lesson/html-base/manual/ch2"

	resp := s.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/teacher-mode", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[progress.State](t, resp)
	assert.Equal(t, []string{"ch2"}, state.Manual)
	assert.Equal(t, 50, state.Percentage)

	resp = s.do(t, http.MethodPost, "/api/progress/lesson/html-base/manual/ch9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTeacherModePIN(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("2468"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, Options{TeacherPINHash: string(hash)})

	resp := s.do(t, http.MethodGet, "/api/teacher-mode", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"enabled": false, "pin_required": true}, decode[map[string]bool](t, resp))

	resp = s.do(t, http.MethodPut, "/api/teacher-mode", map[string]interface{}{"enabled": true, "pin": "0000"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/teacher-mode", map[string]interface{}{"enabled": true, "pin": "2468"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/teacher-mode", nil)
	assert.Equal(t, true, decode[map[string]bool](t, resp)["enabled"])

	// Turning it off never needs the PIN.
	resp = s.do(t, http.MethodPut, "/api/teacher-mode", map[string]interface{}{"enabled": false})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTeacherModePINHeader(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("2468"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, Options{TeacherPINHash: string(hash)})

	put := func(pin string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, s.URL+"/api/teacher-mode", strings.NewReader(`{"enabled":true}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(TeacherPINHeader, pin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusForbidden, put("1111").StatusCode)
	assert.Equal(t, http.StatusOK, put("2468").StatusCode)

	user, err := s.repo.GetUser(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, user.TeacherMode)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodPost, "/api/progress/lesson/html-base/solution", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/stats/lessons", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]interface{}](t, resp)
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, float64(1), stats["completed"])
	assert.Equal(t, float64(1), stats["streak_days"])
	assert.Equal(t, "Hoy", stats["last_activity_label"])
	assert.Equal(t, "flexbox", stats["next"].(map[string]interface{})["slug"])
	assert.Equal(t, "html-base", stats["last_touched"].(map[string]interface{})["slug"])
}

func TestShareRoundTrip(t *testing.T) {
	s := newTestServer(t, Options{FrontendURL: "https://codeando.example/"})

	resp := s.do(t, http.MethodPost, "/api/share", domain.Code{HTML: "<h1>Hola</h1>", CSS: "h1{}"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.True(t, strings.HasPrefix(body["url"], "https://codeando.example/playground?s="))

	resp = s.do(t, http.MethodGet, "/api/share?s="+body["token"], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.Code{HTML: "<h1>Hola</h1>", CSS: "h1{}"}, decode[domain.Code](t, resp))

	resp = s.do(t, http.MethodGet, "/api/share?s=AAAA", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodPost, "/api/preview", domain.Code{HTML: `<h1 onclick="x()">Hola</h1><script>x()</script>`, CSS: "h1{}"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'none'")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Hola</h1>")
	assert.NotContains(t, string(data), "<script")
}

func TestExport(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodPut, "/api/progress/project/landing", domain.Code{HTML: "<header>Hi</header>", CSS: "header{}"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/export/project/landing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="codeando-project-landing.zip"`)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"index.html", "styles.css", "README.txt"}, names)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["lessons"])

	s.repo.Fail(errors.New("db down"))
	resp = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetMe(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, "tab", body["session_id"])
}
