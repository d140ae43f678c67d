package runtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry keeps every live session of the server, keyed by session ID.
// The room only knows participants; the registry is what the server uses
// to drain and abort connections on shutdown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Add registers a session. Returns false if its ID is already known.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		return false
	}
	r.sessions[s.ID()] = s
	return true
}

func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the live sessions at call time.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

// Pending sums the queued lines of every live session.
func (r *Registry) Pending() int {
	return lo.SumBy(r.Snapshot(), func(s *Session) int { return s.Pending() })
}
