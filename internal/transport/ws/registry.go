// Package ws is the real-time push transport. It keeps a process-local
// registry of authenticated WebSocket connections keyed by user id and
// delivers JSON payloads to them.
package ws

import "sync"

// Handle is one live connection as seen by the registry and dispatcher.
type Handle interface {
	// Send queues msg for delivery without blocking.
	Send(msg []byte) error
}

// Registry maps a user id to that user's live handles. A user's entry is
// removed as soon as its last handle unregisters.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[Handle]struct{}
	owner  map[Handle]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[Handle]struct{}),
		owner:  make(map[Handle]string),
	}
}

// Register adds h to userID's set. Registering the same handle again is a no-op.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.owner[h]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(h)
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[Handle]struct{})
		r.byUser[userID] = set
	}
	set[h] = struct{}{}
	r.owner[h] = userID
}

// Unregister removes h from whichever user owns it. Unknown handles are ignored.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(h)
}

func (r *Registry) removeLocked(h Handle) {
	userID, ok := r.owner[h]
	if !ok {
		return
	}
	delete(r.owner, h)
	set := r.byUser[userID]
	delete(set, h)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// ActiveHandles returns a snapshot of userID's handles, possibly empty.
func (r *Registry) ActiveHandles(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

// All returns a snapshot of every registered handle.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.owner))
	for h := range r.owner {
		out = append(out, h)
	}
	return out
}

// Users returns how many users currently have at least one handle.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
