package playground

import (
	"strconv"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager(nil)
	conn := &websocket.Conn{}
	userID := "user123"
	sessionID := "tab-1"

	sm.Register(userID, sessionID, conn)

	active := sm.GetActive(userID, sessionID)
	if active != conn {
		t.Errorf("Expected connection %v, got %v", conn, active)
	}
	if sm.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", sm.Count())
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager(nil)
	conn := &websocket.Conn{}
	userID := "user123"
	sessionID := "tab-1"

	sm.Register(userID, sessionID, conn)
	sm.Unregister(userID, sessionID, conn)

	active := sm.GetActive(userID, sessionID)
	if active != nil {
		t.Errorf("Expected nil connection, got %v", active)
	}
	if sm.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", sm.Count())
	}
}

func TestSessionManager_UnregisterStale(t *testing.T) {
	sm := NewSessionManager(nil)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}
	userID := "user123"

	sm.Register(userID, "tab-1", conn1)
	sm.Register(userID, "tab-2", conn2)

	sm.Unregister(userID, "tab-1", conn1)
	// Unregistering a connection that is not the current one is a no-op.
	sm.Unregister(userID, "tab-2", conn1)

	active := sm.GetActive(userID, "tab-2")
	if active != conn2 {
		t.Errorf("Expected connection %v, got %v", conn2, active)
	}
	if sm.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", sm.Count())
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager(nil)
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.Register(userID, "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.GetActive(userID, "tab-"+strconv.Itoa(i))
			sm.Count()
		}
	}()
	wg.Wait()

	if sm.Count() != 1000 {
		t.Errorf("Expected 1000 sessions, got %d", sm.Count())
	}
}
