package conference

import (
	"sync"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// registry owns the clientId -> Session mapping (C4): a read-mostly map
// guarded by one RWMutex, the way spec.md §5 allows ("writes... go
// through a registry actor or reader-writer lock") and the way the
// teacher's sfuRoom guards its peers map with a plain sync.Mutex.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

func (r *registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// list returns a snapshot slice safe to range over after the lock is
// released (mutations during iteration are common: broadcast, teardown).
func (r *registry) list() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *registry) clientList() []signaling.ClientListEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]signaling.ClientListEntry, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, signaling.ClientListEntry{ClientID: s.id, DisplayName: s.displayName})
	}
	return out
}

// sendTo implements the C4 primitive of the same name.
func (r *registry) sendTo(id string, env signaling.Envelope) {
	if s := r.get(id); s != nil {
		s.send(env)
	}
}

// broadcast implements the C4 primitive of the same name: deliver env to
// every session except exceptID (pass "" to include everyone).
func (r *registry) broadcast(env signaling.Envelope, exceptID string) {
	for _, s := range r.list() {
		if s.id == exceptID {
			continue
		}
		s.send(env)
	}
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
