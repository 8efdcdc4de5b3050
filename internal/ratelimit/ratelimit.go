// Package ratelimit implements the per-presentation rate-limiter pipeline.
//
// A pipeline is an ordered list of named limiters. Every user message is
// checked against all of them: the first refusal wins and nothing is
// committed; if every limiter passes, all of their state updates are applied
// together with the global last-message timestamp. Limiters never write
// shared state themselves, they only propose updates.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

// lastMessageKey prefixes the pipeline-owned per-identity timestamp of the
// last accepted message.
const lastMessageKey = "lmt-"

// ErrUnknownLimiterSpec is returned by FromSpec for a spec with no
// recognized variant.
var ErrUnknownLimiterSpec = errors.New("unknown limiter spec")

// Snapshot gives limiters read access to shared pipeline state. Writes go
// through Update proposals only.
type Snapshot interface {
	Get(key string) (uint64, bool)
}

// StateUpdate is a proposed write, applied only when the whole pipeline
// allows the message. The final key is "<limiter name>-<Key>".
type StateUpdate struct {
	Key   string
	Value uint64
}

// Update is a limiter's verdict on a passing message: an advisory message
// for the client and an optional state write.
type Update struct {
	ClientMessage string
	StateUpdate   *StateUpdate
}

// Limiter is one named stage of the pipeline.
//
// lastMsg is the pipeline-global timestamp of the identity's last accepted
// message (zero if none). Returning an error blocks the message; the error
// text is advisory and only the limiter's name reaches the wire.
type Limiter interface {
	Evaluate(lastMsg, now uint64, name string, state Snapshot, identity string, msg model.IncomingUserMessage) (Update, error)
}

type entry struct {
	name    string
	limiter Limiter
}

// Pipeline is a concurrency-safe ordered set of limiters with their shared
// state. The zero value is not usable; use New.
type Pipeline struct {
	mu       sync.RWMutex
	limiters []entry

	stateMu sync.Mutex
	state   map[string]uint64
}

func New() *Pipeline {
	return &Pipeline{state: make(map[string]uint64)}
}

// Add installs a limiter under name, replacing any existing limiter with the
// same name in place so pipeline order is stable.
func (p *Pipeline) Add(name string, l Limiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.limiters {
		if p.limiters[i].name == name {
			p.limiters[i].limiter = l
			return
		}
	}
	p.limiters = append(p.limiters, entry{name: name, limiter: l})
}

// Remove drops the named limiter. Removing an absent name is a no-op.
func (p *Pipeline) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.limiters {
		if p.limiters[i].name == name {
			p.limiters = append(p.limiters[:i], p.limiters[i+1:]...)
			return
		}
	}
}

// Names returns the limiter names in evaluation order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.limiters))
	for i, e := range p.limiters {
		names[i] = e.name
	}
	return names
}

type stateView struct {
	state map[string]uint64
}

func (v stateView) Get(key string) (uint64, bool) {
	val, ok := v.state[key]
	return val, ok
}

// Check runs the message through every limiter in order.
//
// Either a single limiter blocks and no state changes, or all pass and every
// proposed update plus the identity's last-message timestamp are committed
// before the next Check can observe the state.
func (p *Pipeline) Check(identity string, msg model.IncomingUserMessage) model.RatelimiterResponse {
	return p.checkAt(identity, msg, uint64(time.Now().Unix()))
}

func (p *Pipeline) checkAt(identity string, msg model.IncomingUserMessage, now uint64) model.RatelimiterResponse {
	p.mu.RLock()
	limiters := make([]entry, len(p.limiters))
	copy(limiters, p.limiters)
	p.mu.RUnlock()

	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	lastMsg := p.state[lastMessageKey+identity]
	view := stateView{state: p.state}

	messages := make(map[string]string, len(limiters))
	updates := make(map[string]*StateUpdate, len(limiters))
	for _, e := range limiters {
		update, err := e.limiter.Evaluate(lastMsg, now, e.name, view, identity, msg)
		if err != nil {
			return model.RatelimiterResponse{Blocked: e.name}
		}
		messages[e.name] = update.ClientMessage
		if update.StateUpdate != nil {
			updates[e.name] = update.StateUpdate
		}
	}

	for name, u := range updates {
		p.state[fmt.Sprintf("%s-%s", name, u.Key)] = u.Value
	}
	p.state[lastMessageKey+identity] = now

	return model.RatelimiterResponse{Allowed: messages}
}

// FromSpec builds a limiter from its wire definition.
func FromSpec(spec model.LimiterSpec) (Limiter, error) {
	switch {
	case spec.Time != nil:
		return NewTimeLimiter(spec.Time.Interval), nil
	case spec.Value != nil:
		return NewValueLimiter(spec.Value.Small, spec.Value.Large, spec.Value.Huge, spec.Value.RegenPer10s, spec.Value.Max), nil
	default:
		return nil, ErrUnknownLimiterSpec
	}
}
