package model

import "encoding/json"

// RatelimiterResponse is sent to a user after every message they submit.
// Exactly one of Allowed or Blocked is populated: Allowed maps limiter names
// to advisory client messages, Blocked names the limiter that refused.
type RatelimiterResponse struct {
	Allowed map[string]string `json:"Allowed,omitempty"`
	Blocked string            `json:"Blocked,omitempty"`
}

// IsBlocked reports whether a limiter refused the message.
func (r RatelimiterResponse) IsBlocked() bool { return r.Blocked != "" }

// MarshalJSON always emits exactly one variant key. An allowed verdict with no
// limiters installed still carries the Allowed tag, as an empty map.
func (r RatelimiterResponse) MarshalJSON() ([]byte, error) {
	if r.Blocked != "" {
		return json.Marshal(struct {
			Blocked string
		}{r.Blocked})
	}
	allowed := r.Allowed
	if allowed == nil {
		allowed = map[string]string{}
	}
	return json.Marshal(struct {
		Allowed map[string]string
	}{allowed})
}

// InitialPresentationData is the first frame a user connection receives.
type InitialPresentationData struct {
	Title    string         `json:"title"`
	Settings *SlideSettings `json:"settings"`
}

// OutgoingUserMessage is the union of frames the broker sends to users.
type OutgoingUserMessage struct {
	InitialPresentationData *InitialPresentationData `json:"InitialPresentationData,omitempty"`
	RatelimiterResponse     *RatelimiterResponse     `json:"RatelimiterResponse,omitempty"`
	NewSlide                *SlideSettings           `json:"NewSlide,omitempty"`
	NewPoll                 *NewPollMessage          `json:"NewPoll,omitempty"`
	Success                 *string                  `json:"Success,omitempty"`
	Error                   *string                  `json:"Error,omitempty"`
	Disconnect              *string                  `json:"Disconnect,omitempty"`
}

// PollResults is a snapshot of choice tallies.
type PollResults map[string]uint64

// OutgoingPresenterMessage is the union of frames the broker sends to
// presenter connections.
type OutgoingPresenterMessage struct {
	Emoji       *EmojiMessage `json:"Emoji,omitempty"`
	PollResults *PollResults  `json:"PollResults,omitempty"`
	Error       *string       `json:"Error,omitempty"`
}

func UserInitial(title string, settings *SlideSettings) OutgoingUserMessage {
	return OutgoingUserMessage{InitialPresentationData: &InitialPresentationData{Title: title, Settings: settings}}
}

func UserRatelimiter(r RatelimiterResponse) OutgoingUserMessage {
	return OutgoingUserMessage{RatelimiterResponse: &r}
}

func UserNewSlide(s SlideSettings) OutgoingUserMessage {
	return OutgoingUserMessage{NewSlide: &s}
}

func UserNewPoll(p NewPollMessage) OutgoingUserMessage {
	return OutgoingUserMessage{NewPoll: &p}
}

func UserSuccess(text string) OutgoingUserMessage {
	return OutgoingUserMessage{Success: &text}
}

func UserError(text string) OutgoingUserMessage {
	return OutgoingUserMessage{Error: &text}
}

func UserDisconnect(reason string) OutgoingUserMessage {
	return OutgoingUserMessage{Disconnect: &reason}
}

func PresenterEmoji(e EmojiMessage) OutgoingPresenterMessage {
	return OutgoingPresenterMessage{Emoji: &e}
}

func PresenterPollResults(totals PollResults) OutgoingPresenterMessage {
	return OutgoingPresenterMessage{PollResults: &totals}
}

func PresenterError(text string) OutgoingPresenterMessage {
	return OutgoingPresenterMessage{Error: &text}
}
