package api

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/metrics"
)

// SessionManager owns the live conversation controllers.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*flow.Controller
	opts     []flow.Option
}

// NewSessionManager creates a manager whose sessions are built with opts.
func NewSessionManager(opts ...flow.Option) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*flow.Controller),
		opts:     opts,
	}
}

// Create starts a new session.
func (m *SessionManager) Create() *flow.Controller {
	id := uuid.NewString()
	opts := append([]flow.Option{flow.WithSessionID(id)}, m.opts...)
	c := flow.NewController(opts...)

	m.mu.Lock()
	m.sessions[id] = c
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.RecordSessionCreated()

	slog.Info("SessionManager.Create: session created", "sessionID", id, "sessions", count)
	return c
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*flow.Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Delete closes and forgets a session. It reports whether the session existed.
func (m *SessionManager) Delete(id string) bool {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	c.Close()
	metrics.RecordSessionClosed()
	slog.Info("SessionManager.Delete: session closed", "sessionID", id)
	return true
}

// IDs lists live session IDs in sorted order.
func (m *SessionManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*flow.Controller)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
		metrics.RecordSessionClosed()
	}
	slog.Info("SessionManager.CloseAll: sessions closed", "count", len(sessions))
}
