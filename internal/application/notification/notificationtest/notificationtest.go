// Package notificationtest provides in-memory collaborators for exercising
// code that raises notifications.
package notificationtest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lendi-api/internal/domain"
)

// Store keeps notifications in memory with the same ordering and ownership
// rules as the DynamoDB repository.
type Store struct {
	mu      sync.Mutex
	items   map[string]domain.Notification
	FailErr error
}

func NewStore() *Store {
	return &Store{items: make(map[string]domain.Notification)}
}

func (s *Store) Create(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailErr != nil {
		return s.FailErr
	}
	if _, ok := s.items[n.NotificationID]; ok {
		return errors.New("duplicate notification id")
	}
	s.items[n.NotificationID] = *n
	return nil
}

func (s *Store) ListForUser(_ context.Context, userID string, page, size int) ([]domain.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.ownedLocked(userID)
	total := len(all)
	start := (page - 1) * size
	if start >= total {
		return []domain.Notification{}, total, nil
	}
	end := min(start+size, total)
	return all[start:end], total, nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkRead(_ context.Context, notificationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[notificationID]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.Read = true
	s.items[notificationID] = n
	return true, nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for k, n := range s.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.items[k] = n
			changed++
		}
	}
	return changed, nil
}

func (s *Store) Delete(_ context.Context, notificationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[notificationID]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(s.items, notificationID)
	return true, nil
}

// All returns every notification owned by userID, newest first.
func (s *Store) All(userID string) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedLocked(userID)
}

func (s *Store) ownedLocked(userID string) []domain.Notification {
	out := make([]domain.Notification, 0)
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NotificationID > out[j].NotificationID
	})
	return out
}

// Push is one payload handed to a Dispatcher. UserID is empty for broadcasts.
type Push struct {
	UserID  string
	Payload any
}

// Dispatcher records pushes. Users listed in Online are reported as delivered.
type Dispatcher struct {
	mu     sync.Mutex
	Online map[string]bool
	pushes []Push
}

func NewDispatcher(online ...string) *Dispatcher {
	d := &Dispatcher{Online: make(map[string]bool)}
	for _, u := range online {
		d.Online[u] = true
	}
	return d
}

func (d *Dispatcher) SendToUser(userID string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, Push{UserID: userID, Payload: payload})
	return d.Online[userID]
}

func (d *Dispatcher) Broadcast(payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, Push{Payload: payload})
}

func (d *Dispatcher) Pushes() []Push {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Push, len(d.pushes))
	copy(out, d.pushes)
	return out
}

// Types returns the realtime message type of every recorded push in order.
func (d *Dispatcher) Types() []string {
	var out []string
	for _, p := range d.Pushes() {
		if m, ok := p.Payload.(domain.RealtimeMessage); ok {
			out = append(out, m.Type)
		}
	}
	return out
}
