package ratelimit

import (
	"errors"
	"fmt"
	"math"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

// ValueLimiter charges a per-identity point balance for each reaction, with
// the cost keyed off the emoji's size class. Points regenerate in ten-second
// steps since the identity's last accepted message, capped at max.
type ValueLimiter struct {
	smallCost   uint64
	largeCost   uint64
	hugeCost    uint64
	regenPer10s uint64
	maxPoints   uint64
}

var _ Limiter = (*ValueLimiter)(nil)

func NewValueLimiter(small, large, huge, regenPer10s, max uint64) *ValueLimiter {
	return &ValueLimiter{
		smallCost:   small,
		largeCost:   large,
		hugeCost:    huge,
		regenPer10s: regenPer10s,
		maxPoints:   max,
	}
}

func (v *ValueLimiter) cost(msg model.IncomingUserMessage) (uint64, error) {
	if msg.Emoji == nil {
		// Non-emoji messages carry no size class and cost nothing.
		return 0, nil
	}
	switch msg.Emoji.Size {
	case 0:
		return v.smallCost, nil
	case 1:
		return v.largeCost, nil
	case 2:
		return v.hugeCost, nil
	default:
		return 0, fmt.Errorf("unknown size class %d", msg.Emoji.Size)
	}
}

func (v *ValueLimiter) Evaluate(lastMsg, now uint64, name string, state Snapshot, identity string, msg model.IncomingUserMessage) (Update, error) {
	cost, err := v.cost(msg)
	if err != nil {
		return Update{}, err
	}

	existing, ok := state.Get(fmt.Sprintf("%s-%s", name, identity))
	if !ok {
		existing = v.maxPoints
	}

	balance := existing
	if now > lastMsg && v.regenPer10s > 0 {
		steps := (now - lastMsg) / 10
		// Clamp before multiplying: a long-idle identity under an extreme
		// regen rate must saturate at max, not wrap around.
		if steps > (math.MaxUint64-existing)/v.regenPer10s {
			balance = v.maxPoints
		} else {
			balance += steps * v.regenPer10s
		}
	}
	if balance > v.maxPoints {
		balance = v.maxPoints
	}

	if cost > balance {
		return Update{}, errors.New("too expensive")
	}

	remaining := balance - cost
	return Update{
		ClientMessage: fmt.Sprintf("%d remaining", remaining),
		StateUpdate:   &StateUpdate{Key: identity, Value: remaining},
	}, nil
}
