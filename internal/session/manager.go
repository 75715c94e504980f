package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/veritas/internal/logging"
)

// Manager owns many independent sessions, each with its own single upload.
type Manager struct {
	deps   Deps
	ttl    time.Duration
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. A ttl of zero disables idle eviction.
func NewManager(deps Deps, ttl time.Duration) *Manager {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return &Manager{
		deps:     deps,
		ttl:      ttl,
		logger:   deps.Logger.With(logging.Field{Key: "component", Value: "session_manager"}),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new idle session.
func (m *Manager) Create() *Session {
	s := New(uuid.New().String(), m.deps)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("session created",
		logging.Field{Key: "session_id", Value: s.ID()},
		logging.Field{Key: "sessions", Value: n})
	return s
}

// Get returns the session with id or ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	m.logger.Debug("session deleted", logging.Field{Key: "session_id", Value: id})
	return nil
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the ttl as of now. Loading
// sessions are never evicted. It returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		last, loading := s.idleSince()
		if loading || now.Sub(last) <= m.ttl {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, s)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("evicted idle sessions", logging.Field{Key: "count", Value: len(expired)})
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Close closes every session and waits for their background work.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		delete(m.sessions, id)
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		s.Wait()
	}
}
