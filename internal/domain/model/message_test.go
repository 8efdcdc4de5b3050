package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingUserEmojiFrame(t *testing.T) {
	frame := `{"User":{"Emoji":{"emoji":"🦀","size":1}}}`

	var msg IncomingMessage
	require.NoError(t, json.Unmarshal([]byte(frame), &msg))
	require.True(t, msg.Valid())
	require.NotNil(t, msg.User)
	require.NotNil(t, msg.User.Emoji)
	assert.Equal(t, "🦀", msg.User.Emoji.Emoji)
	assert.Equal(t, uint8(1), msg.User.Emoji.Size)

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, frame, string(out))
}

func TestIncomingUserVoteFrame(t *testing.T) {
	frame := `{"User":{"Vote":{"poll_name":"lunch","vote_type":{"SingleBinary":{"choice":"pizza"}}}}}`

	var msg IncomingMessage
	require.NoError(t, json.Unmarshal([]byte(frame), &msg))
	require.True(t, msg.Valid())
	require.NotNil(t, msg.User.Vote)
	assert.Equal(t, "lunch", msg.User.Vote.PollName)
	assert.Equal(t, VoteKindSingleBinary, msg.User.Vote.VoteType.Kind())
}

func TestIncomingPresenterFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		check func(t *testing.T, m *IncomingPresenterMessage)
	}{
		{
			name:  "new slide",
			frame: `{"Presenter":{"NewSlide":{"slide":3,"slide_settings":{"message":"questions?","emojis":["👏","🔥"]}}}}`,
			check: func(t *testing.T, m *IncomingPresenterMessage) {
				require.NotNil(t, m.NewSlide)
				assert.Equal(t, uint64(3), m.NewSlide.Slide)
				assert.Equal(t, []string{"👏", "🔥"}, m.NewSlide.SlideSettings.Emojis)
			},
		},
		{
			name:  "new poll",
			frame: `{"Presenter":{"NewPoll":{"name":"lunch","options":["pizza","salad"],"vote_type":{"SingleBinary":{"choice":""}}}}}`,
			check: func(t *testing.T, m *IncomingPresenterMessage) {
				require.NotNil(t, m.NewPoll)
				assert.Equal(t, "lunch", m.NewPoll.Name)
			},
		},
		{
			name:  "get poll totals",
			frame: `{"Presenter":{"GetPollTotals":{"name":"lunch"}}}`,
			check: func(t *testing.T, m *IncomingPresenterMessage) {
				require.NotNil(t, m.GetPollTotals)
			},
		},
		{
			name:  "add ratelimiter",
			frame: `{"Presenter":{"AddRatelimiter":{"name":"points","limiter":{"Value":{"small":1,"large":5,"huge":10,"regen_per_10s":1,"max":10}}}}}`,
			check: func(t *testing.T, m *IncomingPresenterMessage) {
				require.NotNil(t, m.AddRatelimiter)
				require.NotNil(t, m.AddRatelimiter.Limiter.Value)
				assert.Equal(t, uint64(10), m.AddRatelimiter.Limiter.Value.Max)
			},
		},
		{
			name:  "remove ratelimiter",
			frame: `{"Presenter":{"RemoveRatelimiter":{"name":"points"}}}`,
			check: func(t *testing.T, m *IncomingPresenterMessage) {
				require.NotNil(t, m.RemoveRatelimiter)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg IncomingMessage
			require.NoError(t, json.Unmarshal([]byte(tc.frame), &msg))
			require.True(t, msg.Valid())
			require.NotNil(t, msg.Presenter)
			tc.check(t, msg.Presenter)
		})
	}
}

func TestIncomingMessageValidity(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		valid bool
	}{
		{"empty object", `{}`, false},
		{"empty user", `{"User":{}}`, false},
		{"empty presenter", `{"Presenter":{}}`, false},
		{"both sides set", `{"User":{"Emoji":{"emoji":"x","size":0}},"Presenter":{"GetPollTotals":{"name":"p"}}}`, false},
		{"two presenter variants", `{"Presenter":{"GetPollTotals":{"name":"p"},"RemoveRatelimiter":{"name":"r"}}}`, false},
		{"two user variants", `{"User":{"Emoji":{"emoji":"x","size":0},"Vote":{"poll_name":"p","vote_type":{}}}}`, false},
		{"single user variant", `{"User":{"Emoji":{"emoji":"x","size":0}}}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg IncomingMessage
			require.NoError(t, json.Unmarshal([]byte(tc.frame), &msg))
			assert.Equal(t, tc.valid, msg.Valid())
		})
	}
}

func TestOutgoingRatelimiterBlockedFrame(t *testing.T) {
	out, err := json.Marshal(UserRatelimiter(RatelimiterResponse{Blocked: "15s"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"RatelimiterResponse":{"Blocked":"15s"}}`, string(out))
}

func TestOutgoingRatelimiterAllowedFrameKeepsVariantTag(t *testing.T) {
	// An allowed verdict must carry the Allowed key even when no limiter
	// contributed a message, so the client can always tell which variant it
	// received.
	for name, resp := range map[string]RatelimiterResponse{
		"nil map":   {},
		"empty map": {Allowed: map[string]string{}},
	} {
		out, err := json.Marshal(UserRatelimiter(resp))
		require.NoError(t, err, name)
		assert.JSONEq(t, `{"RatelimiterResponse":{"Allowed":{}}}`, string(out), name)
	}

	out, err := json.Marshal(UserRatelimiter(RatelimiterResponse{
		Allowed: map[string]string{"15s": "next message allowed at 1015"},
	}))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"RatelimiterResponse":{"Allowed":{"15s":"next message allowed at 1015"}}}`,
		string(out))
}

func TestRatelimiterResponseRoundTrip(t *testing.T) {
	for _, frame := range []string{
		`{"Allowed":{}}`,
		`{"Allowed":{"15s":"next message allowed at 1015"}}`,
		`{"Blocked":"15s"}`,
	} {
		var resp RatelimiterResponse
		require.NoError(t, json.Unmarshal([]byte(frame), &resp))
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, frame, string(out))
	}
}

func TestOutgoingDisconnectFrameKeepsEmptyReason(t *testing.T) {
	out, err := json.Marshal(UserDisconnect(""))
	require.NoError(t, err)
	// The variant key must survive even with an empty reason, otherwise the
	// client cannot tell a takeover from a dropped frame.
	assert.JSONEq(t, `{"Disconnect":""}`, string(out))
}

func TestOutgoingInitialFrame(t *testing.T) {
	out, err := json.Marshal(UserInitial("Go in Production", &SlideSettings{
		Message: "welcome",
		Emojis:  []string{"👋"},
	}))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"InitialPresentationData":{"title":"Go in Production","settings":{"message":"welcome","emojis":["👋"]}}}`,
		string(out))
}

func TestOutgoingPresenterEmojiFrame(t *testing.T) {
	out, err := json.Marshal(PresenterEmoji(EmojiMessage{Emoji: "🔥", Size: 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Emoji":{"emoji":"🔥","size":2}}`, string(out))
}

func TestVoteTypeKind(t *testing.T) {
	cases := []struct {
		name string
		vt   VoteType
		kind VoteKind
	}{
		{"none set", VoteType{}, VoteKindInvalid},
		{"single binary", VoteType{SingleBinary: &SingleBinaryVote{Choice: "a"}}, VoteKindSingleBinary},
		{"multiple binary", VoteType{MultipleBinary: &MultipleBinaryVote{Choices: map[string]bool{"a": true}}}, VoteKindMultipleBinary},
		{"single value", VoteType{SingleValue: &SingleValueVote{Choice: "a", Value: 1}}, VoteKindSingleValue},
		{"multiple value", VoteType{MultipleValue: &MultipleValueVote{Choices: map[string]uint8{"a": 1}}}, VoteKindMultipleValue},
		{
			"two set",
			VoteType{
				SingleBinary:   &SingleBinaryVote{Choice: "a"},
				MultipleBinary: &MultipleBinaryVote{},
			},
			VoteKindInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.vt.Kind())
		})
	}
}

func TestSlideSettingsAllowsEmoji(t *testing.T) {
	s := &SlideSettings{Emojis: []string{"👏", "🔥"}}
	assert.True(t, s.AllowsEmoji("🔥"))
	assert.False(t, s.AllowsEmoji("🦀"))

	var nilSettings *SlideSettings
	assert.False(t, nilSettings.AllowsEmoji("🔥"))
}
