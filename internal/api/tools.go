package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/export"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/preview"
	"github.com/ashureev/codeando/internal/share"
	"github.com/go-chi/chi/v5"
)

// previewCSP forbids scripts and frames in the preview document.
const previewCSP = "default-src 'none'; style-src 'unsafe-inline' *; img-src * data:; font-src *; media-src * data:"

// CreateShare encodes buffers into a share link.
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
	var code domain.Code
	if err := h.decodeJSON(w, r, &code); err != nil {
		fail(w, r, "Create share", err)
		return
	}
	if err := h.checkCode(code); err != nil {
		fail(w, r, "Create share", err)
		return
	}

	token, err := share.Encode(code)
	if err != nil {
		fail(w, r, "Create share", err)
		return
	}
	link, err := share.URL(h.shareBase(r), code)
	if err != nil {
		fail(w, r, "Create share", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"token": token, "url": link})
}

// ResolveShare decodes a share token from the s query parameter.
func (h *Handler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	code, err := share.Decode(r.URL.Query().Get(share.QueryParam))
	if err != nil {
		fail(w, r, "Resolve share", err)
		return
	}
	JSON(w, http.StatusOK, code)
}

// shareBase is the page share links point to.
func (h *Handler) shareBase(r *http.Request) string {
	if h.opts.FrontendURL != "" {
		return strings.TrimRight(h.opts.FrontendURL, "/") + "/playground"
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/playground"
}

// Preview returns the sanitized iframe document for buffers.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var code domain.Code
	if err := h.decodeJSON(w, r, &code); err != nil {
		fail(w, r, "Preview", err)
		return
	}
	if err := h.checkCode(code); err != nil {
		fail(w, r, "Preview", err)
		return
	}

	doc := preview.BuildSrcDoc(code.HTML, code.CSS)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Debug("Failed to write preview", "error", err)
	}
}

// Export downloads the learner's saved buffers as a ZIP site.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, "Export", err)
		return
	}
	slug := chi.URLParam(r, "slug")
	state, err := h.tracker.Get(r.Context(), identity.UserIDFromContext(r.Context()), kind, slug)
	if err != nil {
		fail(w, r, "Export", err)
		return
	}
	entry, err := h.tracker.Entry(kind, slug)
	if err != nil {
		fail(w, r, "Export", err)
		return
	}

	var buf bytes.Buffer
	err = export.WriteZip(&buf, export.Bundle{
		Title: entry.Title,
		Slug:  entry.Slug,
		Kind:  kind,
		HTML:  state.HTML,
		CSS:   state.CSS,
		Now:   time.Now(),
	})
	if err != nil {
		fail(w, r, "Export", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(kind, slug)))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to write export", "error", err)
	}
}
