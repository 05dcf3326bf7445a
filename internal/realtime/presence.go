package realtime

import (
	"sync"
)

// Handle is a live connection that events can be pushed to.
type Handle interface {
	ID() string
	Send(event string, payload interface{}) bool
}

// Presence maps user ids to their live connection. A deployment with more
// than one server needs an implementation backed by a shared store.
type Presence interface {
	Register(userID string, h Handle)
	Lookup(userID string) (Handle, bool)
	// Unregister removes the entry only while it still points at h, so a
	// late disconnect does not evict a newer connection.
	Unregister(userID string, h Handle) bool
	Online() []string
}

type LocalPresence struct {
	mu    sync.RWMutex
	users map[string]Handle
}

func NewLocalPresence() *LocalPresence {
	return &LocalPresence{users: map[string]Handle{}}
}

func (p *LocalPresence) Register(userID string, h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = h
}

func (p *LocalPresence) Lookup(userID string) (Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.users[userID]
	return h, ok
}

func (p *LocalPresence) Unregister(userID string, h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.users[userID]
	if !ok || current.ID() != h.ID() {
		return false
	}
	delete(p.users, userID)
	return true
}

func (p *LocalPresence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.users))
	for id := range p.users {
		out = append(out, id)
	}
	return out
}
