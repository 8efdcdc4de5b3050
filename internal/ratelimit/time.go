package ratelimit

import (
	"errors"
	"fmt"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

// TimeLimiter allows one message per interval. It keeps no state of its own
// and reads the pipeline-global last-message timestamp instead, so several
// time limiters in one pipeline share a single clock per identity.
type TimeLimiter struct {
	interval uint64
}

var _ Limiter = (*TimeLimiter)(nil)

func NewTimeLimiter(intervalSeconds uint64) *TimeLimiter {
	return &TimeLimiter{interval: intervalSeconds}
}

func (t *TimeLimiter) Evaluate(lastMsg, now uint64, _ string, _ Snapshot, _ string, _ model.IncomingUserMessage) (Update, error) {
	// A last-send in the future means the wall clock moved backwards.
	if lastMsg > now {
		return Update{}, errors.New("try again shortly")
	}

	if now-lastMsg < t.interval {
		return Update{}, fmt.Errorf("try again in %d seconds", t.interval-(now-lastMsg))
	}

	return Update{
		ClientMessage: fmt.Sprintf("next message allowed at %d", now+t.interval),
	}, nil
}
