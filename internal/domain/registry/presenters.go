package registry

import "sync"

// Presenters is the presenter-side table. Unlike Users it is keyed by handle
// alone: the privileged identity may keep several connections open at once
// (speaker notes on a laptop, slides on a podium machine), so there is no
// takeover here.
type Presenters[T any] struct {
	mu       sync.Mutex
	byHandle map[string]*Slot[T]
}

func NewPresenters[T any]() *Presenters[T] {
	return &Presenters[T]{byHandle: make(map[string]*Slot[T])}
}

func (r *Presenters[T]) Insert(p *Slot[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHandle[p.Handle] = p
}

func (r *Presenters[T]) ByHandle(handle string) (*Slot[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byHandle[handle]
	return p, ok
}

// Remove drops the slot registered under the handle, reporting whether it
// was still present.
func (r *Presenters[T]) Remove(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHandle[handle]; !ok {
		return false
	}
	delete(r.byHandle, handle)
	return true
}

func (r *Presenters[T]) Snapshot() []*Slot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Slot[T], 0, len(r.byHandle))
	for _, p := range r.byHandle {
		out = append(out, p)
	}
	return out
}

func (r *Presenters[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}
