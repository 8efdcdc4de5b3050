// Package model defines the wire contract of the broker.
//
// All WebSocket traffic is JSON. Unions are externally tagged: an object with
// exactly one key, the variant name, whose value is the variant payload. Go
// structs express this with one optional pointer field per variant, so a
// message round-trips through encoding/json without custom codecs.
package model

import "fmt"

// Role marks which side of a presentation a connection was bound to.
type Role string

const (
	RoleUser      Role = "user"
	RolePresenter Role = "presenter"
)

// SlideSettings is the allowed emoji set and accompanying message for the
// slide currently on screen. Nil means the presentation has not started.
type SlideSettings struct {
	Message string   `json:"message"`
	Emojis  []string `json:"emojis"`
}

// AllowsEmoji reports whether the emoji is permitted on the current slide.
func (s *SlideSettings) AllowsEmoji(emoji string) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Emojis {
		if e == emoji {
			return true
		}
	}
	return false
}

// EmojiMessage is a single reaction. Size is a class, not pixels: 0 small,
// 1 large, 2 huge.
type EmojiMessage struct {
	Emoji string `json:"emoji"`
	Size  uint8  `json:"size"`
}

// NewSlideMessage carries the presenter's slide change.
type NewSlideMessage struct {
	Slide         uint64        `json:"slide"`
	SlideSettings SlideSettings `json:"slide_settings"`
}

// NewPollMessage declares a poll. It is both an incoming presenter command
// and the outgoing broadcast users receive.
type NewPollMessage struct {
	Name     string   `json:"name"`
	Options  []string `json:"options"`
	VoteType VoteType `json:"vote_type"`
}

// GetPollTotalsMessage asks for a snapshot of a poll's tally.
type GetPollTotalsMessage struct {
	Name string `json:"name"`
}

// AddRatelimiterMessage installs (or replaces) a named limiter in the
// presentation's pipeline.
type AddRatelimiterMessage struct {
	Name    string      `json:"name"`
	Limiter LimiterSpec `json:"limiter"`
}

// RemoveRatelimiterMessage removes a named limiter.
type RemoveRatelimiterMessage struct {
	Name string `json:"name"`
}

// Vote is a user's ballot for one poll.
type Vote struct {
	PollName string   `json:"poll_name"`
	VoteType VoteType `json:"vote_type"`
}

// IncomingMessage is the top-level union of everything a peer may send.
type IncomingMessage struct {
	Presenter *IncomingPresenterMessage `json:"Presenter,omitempty"`
	User      *IncomingUserMessage      `json:"User,omitempty"`
}

// Valid reports whether exactly one side of the union is set, with exactly
// one variant inside it.
func (m IncomingMessage) Valid() bool {
	if m.Presenter != nil && m.User != nil {
		return false
	}
	if m.Presenter != nil {
		return m.Presenter.valid()
	}
	if m.User != nil {
		return m.User.valid()
	}
	return false
}

func (m IncomingMessage) String() string {
	switch {
	case m.Presenter != nil:
		return m.Presenter.String()
	case m.User != nil:
		return m.User.String()
	default:
		return "empty message"
	}
}

// IncomingPresenterMessage is the union of presenter control messages.
type IncomingPresenterMessage struct {
	NewSlide          *NewSlideMessage          `json:"NewSlide,omitempty"`
	NewPoll           *NewPollMessage           `json:"NewPoll,omitempty"`
	GetPollTotals     *GetPollTotalsMessage     `json:"GetPollTotals,omitempty"`
	AddRatelimiter    *AddRatelimiterMessage    `json:"AddRatelimiter,omitempty"`
	RemoveRatelimiter *RemoveRatelimiterMessage `json:"RemoveRatelimiter,omitempty"`
}

func (m *IncomingPresenterMessage) valid() bool {
	set := 0
	for _, ok := range []bool{
		m.NewSlide != nil,
		m.NewPoll != nil,
		m.GetPollTotals != nil,
		m.AddRatelimiter != nil,
		m.RemoveRatelimiter != nil,
	} {
		if ok {
			set++
		}
	}
	return set == 1
}

func (m *IncomingPresenterMessage) String() string {
	switch {
	case m.NewSlide != nil:
		return fmt.Sprintf("new settings for slide %d: %v - %s",
			m.NewSlide.Slide, m.NewSlide.SlideSettings.Emojis, m.NewSlide.SlideSettings.Message)
	case m.NewPoll != nil:
		return fmt.Sprintf("new poll %q with options %v", m.NewPoll.Name, m.NewPoll.Options)
	case m.GetPollTotals != nil:
		return fmt.Sprintf("totals request for poll %q", m.GetPollTotals.Name)
	case m.AddRatelimiter != nil:
		return fmt.Sprintf("add ratelimiter %q", m.AddRatelimiter.Name)
	case m.RemoveRatelimiter != nil:
		return fmt.Sprintf("remove ratelimiter %q", m.RemoveRatelimiter.Name)
	default:
		return "empty presenter message"
	}
}

// IncomingUserMessage is the union of audience interactions.
type IncomingUserMessage struct {
	Emoji *EmojiMessage `json:"Emoji,omitempty"`
	Vote  *Vote         `json:"Vote,omitempty"`
}

func (m *IncomingUserMessage) valid() bool {
	return (m.Emoji != nil) != (m.Vote != nil)
}

func (m *IncomingUserMessage) String() string {
	switch {
	case m.Emoji != nil:
		return fmt.Sprintf("%s with size %d", m.Emoji.Emoji, m.Emoji.Size)
	case m.Vote != nil:
		return fmt.Sprintf("vote in %q", m.Vote.PollName)
	default:
		return "empty user message"
	}
}

// IdentifiedIncoming is the envelope a connection publishes onto the internal
// message fabric: the parsed frame tagged with the verified sender identity,
// its connection handle, the presentation it belongs to and which side of the
// presentation the connection is bound to.
type IdentifiedIncoming struct {
	Presentation string          `json:"presentation"`
	Identity     string          `json:"identity"`
	Handle       string          `json:"handle"`
	Role         Role            `json:"role"`
	Message      IncomingMessage `json:"message"`
}

func (m IdentifiedIncoming) String() string {
	return fmt.Sprintf("%s (%s): %s", m.Identity, m.Handle, m.Message)
}
