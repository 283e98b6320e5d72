package store

import (
	"context"
	"sync"

	"github.com/librarydesk/librarian/internal/backend"
)

// Memory is a map-backed SessionStore without expiry.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*backend.Session
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*backend.Session)}
}

// Load implements SessionStore.
func (m *Memory) Load(_ context.Context, visitorKey string) (*backend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[visitorKey]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

// Save implements SessionStore.
func (m *Memory) Save(_ context.Context, visitorKey string, session *backend.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session == nil {
		delete(m.sessions, visitorKey)
		return nil
	}
	m.sessions[visitorKey] = session
	return nil
}

// Delete implements SessionStore.
func (m *Memory) Delete(_ context.Context, visitorKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, visitorKey)
	return nil
}

// Count implements SessionStore.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

// Close implements SessionStore.
func (m *Memory) Close() error { return nil }
