// Package presentation holds the tenant aggregate: one live session with its
// presenter identity, verification key, audience registry, polls, slide
// state and rate-limiter pipeline.
package presentation

import (
	"crypto/ecdsa"
	"sync"

	"github.com/exhibit-live/exhibit/internal/domain/model"
	"github.com/exhibit-live/exhibit/internal/domain/registry"
	"github.com/exhibit-live/exhibit/internal/ratelimit"
)

// DefaultLimiterName is the name of the time limiter every presentation
// starts with.
const DefaultLimiterName = "15s"

const defaultLimiterInterval = 15

// UserSlot and PresenterSlot are the registry slot types for the two sides
// of a presentation.
type (
	UserSlot      = registry.Slot[model.OutgoingUserMessage]
	PresenterSlot = registry.Slot[model.OutgoingPresenterMessage]
)

// NewUserSlot registers-to-be a user connection: the slot starts unbound and
// gets its send queue on upgrade.
func NewUserSlot(identity, handle string) *UserSlot {
	return registry.NewSlot[model.OutgoingUserMessage](identity, handle)
}

func NewPresenterSlot(identity, handle string) *PresenterSlot {
	return registry.NewSlot[model.OutgoingPresenterMessage](identity, handle)
}

// Presentation is the aggregate for one session. Identity-scoped state
// (users, presenters, polls, limiter state) lives in its own concurrency-safe
// containers; only the slide settings are guarded here.
type Presentation struct {
	id                string
	presenterIdentity string
	title             string
	encrypted         bool
	authKey           *ecdsa.PublicKey

	users       *registry.Users[model.OutgoingUserMessage]
	presenters  *registry.Presenters[model.OutgoingPresenterMessage]
	polls       *Polls
	ratelimiter *ratelimit.Pipeline

	slideMu       sync.RWMutex
	slideSettings *model.SlideSettings
}

// New builds a presentation with empty registries and the default 15 second
// time limiter installed.
func New(id, presenterIdentity, title string, encrypted bool, authKey *ecdsa.PublicKey) *Presentation {
	rl := ratelimit.New()
	rl.Add(DefaultLimiterName, ratelimit.NewTimeLimiter(defaultLimiterInterval))

	return &Presentation{
		id:                id,
		presenterIdentity: presenterIdentity,
		title:             title,
		encrypted:         encrypted,
		authKey:           authKey,
		users:             registry.NewUsers[model.OutgoingUserMessage](),
		presenters:        registry.NewPresenters[model.OutgoingPresenterMessage](),
		polls:             NewPolls(),
		ratelimiter:       rl,
	}
}

func (p *Presentation) ID() string                { return p.id }
func (p *Presentation) PresenterIdentity() string { return p.presenterIdentity }
func (p *Presentation) Title() string             { return p.title }
func (p *Presentation) Encrypted() bool           { return p.encrypted }

// AuthKey is the verification key join tokens for this presentation are
// checked against.
func (p *Presentation) AuthKey() *ecdsa.PublicKey { return p.authKey }

func (p *Presentation) Users() *registry.Users[model.OutgoingUserMessage] { return p.users }

func (p *Presentation) Presenters() *registry.Presenters[model.OutgoingPresenterMessage] {
	return p.presenters
}

func (p *Presentation) Polls() *Polls { return p.polls }

func (p *Presentation) Ratelimiter() *ratelimit.Pipeline { return p.ratelimiter }

// SlideSettings snapshots the current slide settings, nil before the first
// slide.
func (p *Presentation) SlideSettings() *model.SlideSettings {
	p.slideMu.RLock()
	defer p.slideMu.RUnlock()
	if p.slideSettings == nil {
		return nil
	}
	s := *p.slideSettings
	return &s
}

// SetSlideSettings replaces the slide settings. Presenter only; the caller
// enforces authorization.
func (p *Presentation) SetSlideSettings(s model.SlideSettings) {
	p.slideMu.Lock()
	defer p.slideMu.Unlock()
	p.slideSettings = &s
}
