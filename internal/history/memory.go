package history

import (
	"sort"
	"sync"
)

// MemoryStore keeps session histories in process memory. Sessions live until
// explicitly cleared.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

// Append adds a message to the end of the session's history, creating the
// session on first use.
func (s *MemoryStore) Append(sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// History returns a copy of the session's messages in append order.
func (s *MemoryStore) History(sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes the session entirely. Clearing an unknown session is a no-op.
func (s *MemoryStore) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sessions lists known session IDs, sorted for stable output.
func (s *MemoryStore) Sessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
