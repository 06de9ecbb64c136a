package playground

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Options configures the WebSocket handler.
type Options struct {
	AllowedOrigin string
	IsDev         bool
	// Debounce is the quiet period before a burst of updates is evaluated.
	// Zero evaluates every update.
	Debounce       time.Duration
	MaxBufferBytes int64
}

// WebSocketHandler serves live playground sessions. Each connection is bound to
// one lesson or project, given by the kind and slug query parameters.
type WebSocketHandler struct {
	tracker *progress.Tracker
	sm      *SessionManager
	opts    Options
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(tracker *progress.Tracker, sm *SessionManager, opts Options) *WebSocketHandler {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.MaxBufferBytes <= 0 {
		opts.MaxBufferBytes = 256 << 10
	}
	return &WebSocketHandler{tracker: tracker, sm: sm, opts: opts}
}

// wsMessage is a client message.
type wsMessage struct {
	Type string `json:"type"`
	HTML string `json:"html"`
	CSS  string `json:"css"`
}

type resultMessage struct {
	Type string `json:"type"`
	progress.Result
}

type stateMessage struct {
	Type string `json:"type"`
	*progress.State
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	kind, err := domain.ParseContentKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slug := r.URL.Query().Get("slug")
	if _, err := h.tracker.Entry(kind, slug); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(2*h.opts.MaxBufferBytes + 4<<10)

	connID := uuid.NewString()
	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	log := slog.With("user_id", userID, "session_id", sessionID, "conn_id", connID, "kind", kind, "slug", slug)
	log.Info("Playground session started")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	state, err := h.tracker.Get(ctx, userID, kind, slug)
	if err != nil {
		log.Error("Failed to load progress", "error", err)
		_ = h.writeJSON(ctx, ws, errorMessage{Type: "error", Error: "load_failed"})
		return
	}
	if err := h.writeJSON(ctx, ws, stateMessage{Type: "state", State: state}); err != nil {
		log.Debug("Failed to send initial state", "error", err)
		return
	}

	msgs := make(chan wsMessage)
	go func() {
		defer cancel()
		h.readLoop(ctx, ws, msgs, log)
	}()

	h.eventLoop(ctx, ws, msgs, userID, kind, slug, log)
	log.Info("Playground session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.opts.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowedOrigin == "*" {
		return true
	}
	if origin == h.opts.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.opts.AllowedOrigin)
	return false
}

// readLoop decodes client messages and hands them to the event loop.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, out chan<- wsMessage, log *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				log.Debug("WebSocket closed by client")
			} else {
				log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("Ignoring malformed message", "error", err)
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// eventLoop owns all writes to the connection. Updates are coalesced until the
// debounce period passes without a newer one; only the latest snapshot is
// evaluated and saved.
//
//nolint:gocognit // Dispatch coordinates the debounce timer with client messages.
func (h *WebSocketHandler) eventLoop(ctx context.Context, ws *websocket.Conn, msgs <-chan wsMessage, userID string, kind domain.ContentKind, slug string, log *slog.Logger) {
	var (
		pending *domain.Code
		timer   *time.Timer
		fire    <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
		fire = nil
		pending = nil
	}
	defer stop()

	flush := func() bool {
		code := *pending
		stop()
		state, err := h.tracker.Update(ctx, userID, kind, slug, code, "playground")
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			log.Error("Failed to evaluate snapshot", "error", err)
			return h.writeJSON(ctx, ws, errorMessage{Type: "error", Error: "save_failed"}) == nil
		}
		return h.writeJSON(ctx, ws, resultMessage{Type: "result", Result: state.Result}) == nil
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				h.saveOnClose(ctx, userID, kind, slug, *pending, log)
			}
			return
		case <-fire:
			if !flush() {
				return
			}
		case msg := <-msgs:
			switch msg.Type {
			case "update":
				if int64(len(msg.HTML)) > h.opts.MaxBufferBytes || int64(len(msg.CSS)) > h.opts.MaxBufferBytes {
					if err := h.writeJSON(ctx, ws, errorMessage{Type: "error", Error: "buffer_too_large"}); err != nil {
						return
					}
					continue
				}
				pending = &domain.Code{HTML: msg.HTML, CSS: msg.CSS}
				if h.opts.Debounce == 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(h.opts.Debounce)
				} else {
					timer.Reset(h.opts.Debounce)
				}
				fire = timer.C
			case "reset":
				stop()
				state, err := h.tracker.Reset(ctx, userID, kind, slug)
				if err != nil {
					log.Error("Failed to reset progress", "error", err)
					if err := h.writeJSON(ctx, ws, errorMessage{Type: "error", Error: "reset_failed"}); err != nil {
						return
					}
					continue
				}
				if err := h.writeJSON(ctx, ws, stateMessage{Type: "state", State: state}); err != nil {
					return
				}
			case "ping":
				if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
					log.Debug("Failed to send pong", "error", err)
					return
				}
			default:
				log.Debug("Ignoring unknown message type", "type", msg.Type)
			}
		}
	}
}

// saveOnClose persists the last unevaluated snapshot of a closed connection.
func (h *WebSocketHandler) saveOnClose(ctx context.Context, userID string, kind domain.ContentKind, slug string, code domain.Code, log *slog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := h.tracker.Update(saveCtx, userID, kind, slug, code, "playground"); err != nil {
		log.Warn("Failed to save final snapshot", "error", err)
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
