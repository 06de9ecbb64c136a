// Package playground provides live evaluation of learner buffers over WebSocket.
package playground

import (
	"log/slog"
	"sync"

	"github.com/ashureev/codeando/internal/metrics"
	"github.com/coder/websocket"
)

// SessionManager tracks open playground connections per learner and browser tab.
type SessionManager struct {
	mu      sync.RWMutex
	active  map[string]map[string]*websocket.Conn
	metrics *metrics.Metrics
}

// NewSessionManager creates a new session manager. m may be nil.
func NewSessionManager(m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		active:  make(map[string]map[string]*websocket.Conn),
		metrics: m,
	}
}

// GetActive returns the active connection for a user and tab session.
func (m *SessionManager) GetActive(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Count returns the number of open connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked()
}

// Register adds a connection for a user/session. A previous connection of the
// same tab is closed.
func (m *SessionManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	stale := m.active[userID][sessionID]
	m.active[userID][sessionID] = conn
	m.observe()
	m.mu.Unlock()

	slog.Info("Playground session registered", "user_id", userID, "session_id", sessionID)

	// Close waits for the close handshake; keep it outside the lock.
	if stale != nil && stale != conn {
		_ = stale.Close(websocket.StatusNormalClosure, "session replaced")
	}
}

// Unregister removes a connection for a user/session. Stale connections that
// were already replaced are ignored.
func (m *SessionManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			m.observe()
			slog.Info("Playground session unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseAll terminates every open session. Used on shutdown, since the HTTP
// server does not track hijacked connections.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[string]*websocket.Conn)
	m.observe()
	m.mu.Unlock()

	for userID, sessions := range active {
		for sid, conn := range sessions {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			slog.Info("Playground session closed", "user_id", userID, "session_id", sid)
		}
	}
}

func (m *SessionManager) countLocked() int {
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

func (m *SessionManager) observe() {
	if m.metrics != nil {
		m.metrics.PlaygroundSessions.Set(float64(m.countLocked()))
	}
}
