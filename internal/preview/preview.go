// Package preview holds the transient image buffers served for on-screen
// display. A handle is live from Allocate until its single Release.
package preview

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is a revocable reference to one preview buffer.
type Handle struct {
	id       string
	mimeType string
	store    *Store
	once     sync.Once
}

// ID is the opaque identifier used in preview URLs.
func (h *Handle) ID() string { return h.id }

// MIMEType is the content type served for the handle.
func (h *Handle) MIMEType() string { return h.mimeType }

// Release drops the buffer. Only the first call has an effect; it reports
// whether this call performed the release.
func (h *Handle) Release() bool {
	if h == nil {
		return false
	}
	released := false
	h.once.Do(func() {
		h.store.drop(h.id)
		released = true
	})
	return released
}

type entry struct {
	data     []byte
	mimeType string
}

// Store owns every live preview buffer.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Allocate registers data and returns its handle.
func (s *Store) Allocate(data []byte, mimeType string) *Handle {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = entry{data: data, mimeType: mimeType}
	s.mu.Unlock()
	return &Handle{id: id, mimeType: mimeType, store: s}
}

// Get returns the buffer for a live handle id.
func (s *Store) Get(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.data, e.mimeType, ok
}

// Live counts handles not yet released.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) drop(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}
