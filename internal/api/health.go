package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/codeando/internal/progress"
	"github.com/ashureev/codeando/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	catalog progress.CatalogSource
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, source progress.CatalogSource) *HealthHandler {
	return &HealthHandler{repo: repo, catalog: source}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if c := h.catalog.Current(); c != nil {
		checks["catalog"] = "ok"
		status["lessons"] = len(c.Lessons())
		status["projects"] = len(c.Projects())
	} else {
		checks["catalog"] = "not loaded"
		status["status"] = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
