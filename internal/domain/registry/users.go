/*
Package registry holds the per-presentation connection tables.

Key concepts:
  - Slots are registered at join time with no send queue attached; the
    WebSocket upgrade binds a bounded queue into the slot later. Fan-out
    skips slots whose queue is not bound yet.
  - Users: at most one live slot per identity. Inserting a new slot for an
    identity that is already registered atomically evicts the old entry and
    fires its close signal (takeover).
  - Presenters: keyed by connection handle only; one identity may hold any
    number of simultaneous presenter connections.
*/
package registry

import "sync"

// Users is the identity-unique registry. Both indices are guarded by one
// mutex so takeover appears atomic to every observer.
type Users[T any] struct {
	mu         sync.Mutex
	byHandle   map[string]*Slot[T]
	byIdentity map[string]*Slot[T]
}

func NewUsers[T any]() *Users[T] {
	return &Users[T]{
		byHandle:   make(map[string]*Slot[T]),
		byIdentity: make(map[string]*Slot[T]),
	}
}

// Insert registers a user slot. If the identity already has a live slot the
// old one is evicted: its close signal fires and both of its index rows are
// removed before the new rows are installed.
func (r *Users[T]) Insert(u *Slot[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byIdentity[u.Identity]; ok {
		old.signalClose()
		delete(r.byHandle, old.Handle)
		delete(r.byIdentity, old.Identity)
	}

	r.byHandle[u.Handle] = u
	r.byIdentity[u.Identity] = u
}

// ByHandle looks a slot up by its connection handle.
func (r *Users[T]) ByHandle(handle string) (*Slot[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byHandle[handle]
	return u, ok
}

// Remove drops the slot's index rows, but only while the identity row still
// points at this slot's handle. After a takeover the evicted connection's
// late Remove finds someone else's row and reports false.
func (r *Users[T]) Remove(u *Slot[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byIdentity[u.Identity]
	if !ok || current.Handle != u.Handle {
		return false
	}
	delete(r.byHandle, u.Handle)
	delete(r.byIdentity, u.Identity)
	return true
}

// Snapshot returns the current slots. Weakly consistent: slots inserted or
// removed during iteration by the caller may or may not appear.
func (r *Users[T]) Snapshot() []*Slot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Slot[T], 0, len(r.byHandle))
	for _, u := range r.byHandle {
		out = append(out, u)
	}
	return out
}

// Len reports the number of registered slots.
func (r *Users[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}
