package ratelimit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

func emoji(size uint8) model.IncomingUserMessage {
	return model.IncomingUserMessage{Emoji: &model.EmojiMessage{Emoji: "🔥", Size: size}}
}

func TestTimeLimiterBlocksInsideInterval(t *testing.T) {
	p := New()
	p.Add("15s", NewTimeLimiter(15))

	first := p.checkAt("alice", emoji(0), 1000)
	require.False(t, first.IsBlocked())
	assert.Contains(t, first.Allowed["15s"], "next message allowed at 1015")

	second := p.checkAt("alice", emoji(0), 1010)
	require.True(t, second.IsBlocked())
	assert.Equal(t, "15s", second.Blocked)

	third := p.checkAt("alice", emoji(0), 1015)
	assert.False(t, third.IsBlocked())
}

func TestTimeLimiterIsPerIdentity(t *testing.T) {
	p := New()
	p.Add("15s", NewTimeLimiter(15))

	require.False(t, p.checkAt("alice", emoji(0), 1000).IsBlocked())
	assert.False(t, p.checkAt("bob", emoji(0), 1001).IsBlocked(),
		"one identity's send must not charge another")
}

func TestTimeLimiterClockSkew(t *testing.T) {
	p := New()
	p.Add("15s", NewTimeLimiter(15))

	require.False(t, p.checkAt("alice", emoji(0), 1000).IsBlocked())

	// Wall clock moved backwards: refuse rather than hand out a free pass.
	skewed := p.checkAt("alice", emoji(0), 990)
	assert.True(t, skewed.IsBlocked())
}

func TestValueLimiterCosts(t *testing.T) {
	p := New()
	p.Add("pts", NewValueLimiter(1, 5, 10, 1, 10))

	resp := p.checkAt("alice", emoji(2), 1000)
	require.False(t, resp.IsBlocked())
	assert.Equal(t, "0 remaining", resp.Allowed["pts"])

	// Balance is spent; a small reaction one second later is too expensive.
	blocked := p.checkAt("alice", emoji(0), 1001)
	require.True(t, blocked.IsBlocked())
	assert.Equal(t, "pts", blocked.Blocked)
}

func TestValueLimiterRegenerates(t *testing.T) {
	p := New()
	p.Add("pts", NewValueLimiter(1, 5, 10, 1, 10))

	require.False(t, p.checkAt("alice", emoji(2), 1000).IsBlocked())

	// 50 seconds at 1 point per 10 seconds leaves 5 points: enough for a
	// large reaction, not a huge one.
	huge := p.checkAt("alice", emoji(2), 1050)
	require.True(t, huge.IsBlocked())

	large := p.checkAt("alice", emoji(1), 1050)
	require.False(t, large.IsBlocked())
	assert.Equal(t, "0 remaining", large.Allowed["pts"])
}

func TestValueLimiterBalanceCapped(t *testing.T) {
	p := New()
	p.Add("pts", NewValueLimiter(1, 5, 10, 5, 10))

	require.False(t, p.checkAt("alice", emoji(0), 1000).IsBlocked())

	// A very long idle period regenerates to max, never beyond: max(10)
	// covers one huge reaction but not a huge plus a large.
	resp := p.checkAt("alice", emoji(2), 9000)
	require.False(t, resp.IsBlocked())
	assert.Equal(t, "0 remaining", resp.Allowed["pts"])
}

// An extreme regen rate over a long idle period must saturate the balance at
// max instead of wrapping the multiply and starving the identity.
func TestValueLimiterRegenSaturatesInsteadOfWrapping(t *testing.T) {
	p := New()
	// Two regen steps at 2^63 points each is exactly 2^64: a wrapping
	// multiply would land the balance on zero.
	p.Add("pts", NewValueLimiter(1, 5, 10, uint64(1)<<63, 10))

	require.False(t, p.checkAt("alice", emoji(2), 1000).IsBlocked())

	resp := p.checkAt("alice", emoji(2), 1020)
	require.False(t, resp.IsBlocked())
	assert.Equal(t, "0 remaining", resp.Allowed["pts"])
}

func TestValueLimiterUnknownSizeBlocks(t *testing.T) {
	p := New()
	p.Add("pts", NewValueLimiter(1, 5, 10, 1, 10))

	resp := p.checkAt("alice", emoji(9), 1000)
	assert.True(t, resp.IsBlocked())
}

// A blocked message must leave no trace: a later limiter refusing the message
// rolls back nothing because nothing was written.
func TestPipelineCommitIsAtomic(t *testing.T) {
	p := New()
	p.Add("pts", NewValueLimiter(5, 5, 5, 0, 10))
	p.Add("deny", denyLimiter{})

	require.True(t, p.checkAt("alice", emoji(0), 1000).IsBlocked())

	// With the refusing stage gone, the full balance must still be there:
	// two small reactions at 5 points each against max 10.
	p.Remove("deny")
	require.False(t, p.checkAt("alice", emoji(0), 2000).IsBlocked())
	resp := p.checkAt("alice", emoji(0), 2000)
	require.False(t, resp.IsBlocked())
	assert.Equal(t, "0 remaining", resp.Allowed["pts"])
}

func TestPipelineFirstRefusalWins(t *testing.T) {
	p := New()
	p.Add("first", denyLimiter{})
	p.Add("second", denyLimiter{})

	resp := p.checkAt("alice", emoji(0), 1000)
	require.True(t, resp.IsBlocked())
	assert.Equal(t, "first", resp.Blocked)
	assert.Empty(t, resp.Allowed)
}

func TestPipelineAddReplacesInPlace(t *testing.T) {
	p := New()
	p.Add("a", NewTimeLimiter(1))
	p.Add("b", NewTimeLimiter(2))
	p.Add("a", NewTimeLimiter(3))

	assert.Equal(t, []string{"a", "b"}, p.Names())
}

func TestPipelineRemoveAbsentIsNoop(t *testing.T) {
	p := New()
	p.Add("a", NewTimeLimiter(1))
	p.Remove("missing")
	assert.Equal(t, []string{"a"}, p.Names())
}

func TestEmptyPipelineAllowsEverything(t *testing.T) {
	p := New()
	resp := p.checkAt("alice", emoji(0), 1000)
	assert.False(t, resp.IsBlocked())
	assert.Empty(t, resp.Allowed)
}

// Removing the last limiter must not degrade the wire shape of the verdict:
// the Allowed variant key survives as an empty map.
func TestEmptiedPipelineVerdictKeepsAllowedTag(t *testing.T) {
	p := New()
	p.Add("15s", NewTimeLimiter(15))
	p.Remove("15s")

	resp := p.checkAt("alice", emoji(0), 1000)
	require.False(t, resp.IsBlocked())

	out, err := json.Marshal(model.UserRatelimiter(resp))
	require.NoError(t, err)
	assert.JSONEq(t, `{"RatelimiterResponse":{"Allowed":{}}}`, string(out))
}

func TestFromSpec(t *testing.T) {
	l, err := FromSpec(model.LimiterSpec{Time: &model.TimeLimiterSpec{Interval: 5}})
	require.NoError(t, err)
	assert.IsType(t, (*TimeLimiter)(nil), l)

	l, err = FromSpec(model.LimiterSpec{Value: &model.ValueLimiterSpec{Small: 1, Max: 10}})
	require.NoError(t, err)
	assert.IsType(t, (*ValueLimiter)(nil), l)

	_, err = FromSpec(model.LimiterSpec{})
	assert.ErrorIs(t, err, ErrUnknownLimiterSpec)
}

type denyLimiter struct{}

func (denyLimiter) Evaluate(_, _ uint64, _ string, _ Snapshot, _ string, _ model.IncomingUserMessage) (Update, error) {
	return Update{}, errors.New("refused")
}
