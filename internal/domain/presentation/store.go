package presentation

import (
	"errors"
	"sync"
)

// ErrAlreadyExists rejects re-creation of a presentation id. Ids are never
// reused: the store only grows, so a once-taken id stays taken for the life
// of the process.
var ErrAlreadyExists = errors.New("presentation already exists")

// Store is the process-wide presentation table. Reads are lock-free
// snapshots via sync.Map, matching the read-heavy lookup on every join,
// upgrade and routed message.
type Store struct {
	presentations sync.Map // map[string]*Presentation
}

func NewStore() *Store {
	return &Store{}
}

// Register installs the presentation, rejecting an already-taken id.
func (s *Store) Register(p *Presentation) error {
	if _, loaded := s.presentations.LoadOrStore(p.ID(), p); loaded {
		return ErrAlreadyExists
	}
	return nil
}

// Get looks a presentation up by id.
func (s *Store) Get(id string) (*Presentation, bool) {
	v, ok := s.presentations.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Presentation), true
}

// Len counts registered presentations.
func (s *Store) Len() int {
	n := 0
	s.presentations.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
