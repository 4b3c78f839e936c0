package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"xbasis/internal/application/port"
	"xbasis/internal/metrics"
)

type entry struct {
	id  uuid.UUID
	sub port.Subscriber
}

// Registry is the only shared mutable state of the hub.
// Structural changes take the write lock; the broadcast cycle copies the
// membership under the read lock and sends outside it.
type Registry struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]port.Subscriber
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[uuid.UUID]port.Subscriber)}
}

// Add registers sub under a fresh ID. It fails once the registry is closed.
func (r *Registry) Add(sub port.Subscriber) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return uuid.Nil, ErrHubClosed
	}
	id := uuid.New()
	r.subs[id] = sub
	metrics.Subscribers.Set(float64(len(r.subs)))
	return id, nil
}

// Remove drops id and returns the subscriber it held, if any.
func (r *Registry) Remove(id uuid.UUID) (port.Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, false
	}
	delete(r.subs, id)
	metrics.Subscribers.Set(float64(len(r.subs)))
	return sub, true
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// members returns a consistent copy of the membership for iteration.
func (r *Registry) members() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.subs))
	for id, sub := range r.subs {
		out = append(out, entry{id: id, sub: sub})
	}
	return out
}

// Drain closes the registry and hands back everything it held.
func (r *Registry) Drain() []port.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	out := make([]port.Subscriber, 0, len(r.subs))
	for id, sub := range r.subs {
		out = append(out, sub)
		delete(r.subs, id)
	}
	metrics.Subscribers.Set(0)
	return out
}
