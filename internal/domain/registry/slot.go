package registry

import "sync"

// sendBuffer is the per-connection outbound queue capacity. When it is full
// the oldest queued frame is dropped so a non-draining client cannot grow
// memory without bound.
const sendBuffer = 256

// Slot is one registered connection endpoint: an identity, the opaque handle
// handed out at join, and (once the upgrade happens) a bounded send queue
// plus a close signal for takeover.
type Slot[T any] struct {
	Identity string
	Handle   string

	mu        sync.Mutex
	send      chan T
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewSlot returns an unbound slot: registered, not yet connected.
func NewSlot[T any](identity, handle string) *Slot[T] {
	return &Slot[T]{
		Identity: identity,
		Handle:   handle,
		closeCh:  make(chan struct{}),
	}
}

// Bind attaches the bounded send queue to the slot and returns it. Binding
// twice returns the same queue.
func (s *Slot[T]) Bind() <-chan T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.send == nil {
		s.send = make(chan T, sendBuffer)
	}
	return s.send
}

// Bound reports whether a connection has attached a send queue.
func (s *Slot[T]) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send != nil
}

// Push enqueues a frame for the slot's write pump. A full queue drops the
// oldest frame first; an unbound slot reports false and the frame is lost,
// which fan-out treats as a skip.
func (s *Slot[T]) Push(msg T) bool {
	s.mu.Lock()
	ch := s.send
	s.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
	}
	// Queue is saturated: evict the oldest frame and retry once.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// CloseSignal fires when the slot has been taken over and its connection
// must shut down.
func (s *Slot[T]) CloseSignal() <-chan struct{} { return s.closeCh }

func (s *Slot[T]) signalClose() {
	s.closeOnce.Do(func() { close(s.closeCh) })
}
