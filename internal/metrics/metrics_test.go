package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Shared(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestRecordEvaluation(t *testing.T) {
	m := NewMetrics()
	evals := m.Evaluations.WithLabelValues("lesson", "test")
	passed := m.ChallengesPassed.WithLabelValues("lesson")
	beforeEvals := testutil.ToFloat64(evals)
	beforePassed := testutil.ToFloat64(passed)

	m.RecordEvaluation("lesson", "test", 3, time.Millisecond)
	m.RecordEvaluation("lesson", "test", 0, time.Millisecond)

	assert.Equal(t, beforeEvals+2, testutil.ToFloat64(evals))
	assert.Equal(t, beforePassed+3, testutil.ToFloat64(passed))
}

func TestRecordSaveAndCatalog(t *testing.T) {
	m := NewMetrics()
	okSaves := m.ProgressSaves.WithLabelValues("project", "ok")
	failedSaves := m.ProgressSaves.WithLabelValues("project", "error")
	beforeOK, beforeFailed := testutil.ToFloat64(okSaves), testutil.ToFloat64(failedSaves)

	m.RecordSave("project", nil)
	m.RecordSave("project", errors.New("locked"))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(okSaves))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failedSaves))

	m.RecordCatalog(12, 10, nil)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.CatalogEntries.WithLabelValues("lesson")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CatalogEntries.WithLabelValues("project")))

	m.RecordCatalog(0, 0, errors.New("bad yaml"))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.CatalogEntries.WithLabelValues("lesson")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/lessons/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/lessons/{slug}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lessons/01-html-base", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	NewMetrics().PlaygroundSessions.Set(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "codeando_playground_sessions 2"))
}
