package presentation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

var errValueVotesNotSupported = errors.New("voting by value is not yet supported")

// PollExistsError is returned when a poll name is already taken. It carries
// the existing definition so the caller can echo it to clients instead of
// silently dropping the request.
type PollExistsError struct {
	Existing model.NewPollMessage
}

func (e *PollExistsError) Error() string {
	return fmt.Sprintf("poll %q already exists", e.Existing.Name)
}

// Poll tracks one poll's declared shape and its running tally. Votes are at
// most one per identity; votes and totals are committed under one mutex so a
// reader never observes a vote without its tally.
type Poll struct {
	name     string
	choices  map[string]struct{}
	voteType model.VoteType

	mu     sync.Mutex
	votes  map[string]model.VoteType
	totals map[string]uint64
}

func newPoll(name string, options []string, voteType model.VoteType) *Poll {
	choices := make(map[string]struct{}, len(options))
	for _, o := range options {
		choices[o] = struct{}{}
	}
	return &Poll{
		name:     name,
		choices:  choices,
		voteType: voteType,
		votes:    make(map[string]model.VoteType),
		totals:   make(map[string]uint64),
	}
}

// Definition rebuilds the wire declaration of the poll. Options come out
// sorted; creation order is not tracked.
func (p *Poll) Definition() model.NewPollMessage {
	options := make([]string, 0, len(p.choices))
	for c := range p.choices {
		options = append(options, c)
	}
	sort.Strings(options)
	return model.NewPollMessage{Name: p.name, Options: options, VoteType: p.voteType}
}

func (p *Poll) vote(identity string, vt model.VoteType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, voted := p.votes[identity]; voted {
		return fmt.Errorf("%s already voted", identity)
	}

	kind := vt.Kind()
	if kind != p.voteType.Kind() {
		return fmt.Errorf("vote type %s does not match poll type %s", kind, p.voteType.Kind())
	}

	switch kind {
	case model.VoteKindSingleBinary:
		choice := vt.SingleBinary.Choice
		if _, ok := p.choices[choice]; !ok {
			return fmt.Errorf("invalid choice %q", choice)
		}
		p.votes[identity] = vt
		p.totals[choice]++

	case model.VoteKindMultipleBinary:
		for choice := range vt.MultipleBinary.Choices {
			if _, ok := p.choices[choice]; !ok {
				return fmt.Errorf("invalid choice %q", choice)
			}
		}
		p.votes[identity] = vt
		for choice, picked := range vt.MultipleBinary.Choices {
			if picked {
				p.totals[choice]++
			}
		}

	case model.VoteKindSingleValue, model.VoteKindMultipleValue:
		return errValueVotesNotSupported

	default:
		return errors.New("invalid vote type")
	}

	return nil
}

// Totals snapshots the current tally.
func (p *Poll) Totals() model.PollResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(model.PollResults, len(p.totals))
	for choice, n := range p.totals {
		out[choice] = n
	}
	return out
}

// VoteCount reports how many identities have a recorded vote.
func (p *Poll) VoteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.votes)
}

// Polls is the per-presentation poll set. Polls are created by the presenter
// and never deleted.
type Polls struct {
	mu    sync.Mutex
	polls map[string]*Poll
}

func NewPolls() *Polls {
	return &Polls{polls: make(map[string]*Poll)}
}

// NewPoll installs a poll. A taken name returns a PollExistsError carrying
// the existing definition; the new declaration is discarded.
func (ps *Polls) NewPoll(decl model.NewPollMessage) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if existing, ok := ps.polls[decl.Name]; ok {
		return &PollExistsError{Existing: existing.Definition()}
	}
	ps.polls[decl.Name] = newPoll(decl.Name, decl.Options, decl.VoteType)
	return nil
}

// Vote records an identity's ballot. Failures keep the original client-facing
// wording: duplicate votes, type mismatches and invalid choices all surface
// as "could not vote".
func (ps *Polls) Vote(identity string, vote model.Vote) error {
	ps.mu.Lock()
	poll, ok := ps.polls[vote.PollName]
	ps.mu.Unlock()

	if !ok {
		return fmt.Errorf("No poll with name %s exists", vote.PollName)
	}

	if err := poll.vote(identity, vote.VoteType); err != nil {
		if errors.Is(err, errValueVotesNotSupported) {
			return fmt.Errorf("%s could not vote in %s: %s", identity, vote.PollName, errValueVotesNotSupported)
		}
		return fmt.Errorf("%s could not vote in %s", identity, vote.PollName)
	}
	return nil
}

// Totals snapshots a poll's tally, or nil if the poll does not exist.
func (ps *Polls) Totals(name string) model.PollResults {
	ps.mu.Lock()
	poll, ok := ps.polls[name]
	ps.mu.Unlock()

	if !ok {
		return nil
	}
	return poll.Totals()
}

// Get returns the poll by name.
func (ps *Polls) Get(name string) (*Poll, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.polls[name]
	return p, ok
}
