package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

// IncomingTopic carries every identified client frame from the connection
// layer to the processor.
const IncomingTopic = "exhibit.messages.incoming"

// Dispatcher is the high-level contract for handing identified frames to the
// fabric. The connection layer stays agnostic of the transport implementation.
type Dispatcher interface {
	Publish(ctx context.Context, inc model.IdentifiedIncoming) error
}

type messageDispatcher struct {
	publisher message.Publisher
}

// NewDispatcher returns the interface instead of the pointer to the struct.
func NewDispatcher(pub message.Publisher) Dispatcher {
	return &messageDispatcher{publisher: pub}
}

func (d *messageDispatcher) Publish(ctx context.Context, inc model.IdentifiedIncoming) error {
	payload, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	middleware.SetCorrelationID(watermill.NewUUID(), msg)

	if err := d.publisher.Publish(IncomingTopic, msg); err != nil {
		return fmt.Errorf("dispatcher: publish to %s: %w", IncomingTopic, err)
	}
	return nil
}
