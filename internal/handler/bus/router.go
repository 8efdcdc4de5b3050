package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/exhibit-live/exhibit/internal/adapter/pubsub"
	"github.com/exhibit-live/exhibit/internal/domain/model"
	"github.com/exhibit-live/exhibit/internal/service"
)

const incomingHandlerName = "ON_INCOMING_MESSAGE"

// MessageHandler bridges the in-process fabric to the domain processor.
type MessageHandler struct {
	logger    *slog.Logger
	processor service.Processor
}

func NewMessageHandler(logger *slog.Logger, processor service.Processor) *MessageHandler {
	return &MessageHandler{logger: logger, processor: processor}
}

func NewWatermillRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return router, nil
}

// Bind connects the fabric to domain logic, handling panic recovery and
// poison frames. Undecodable payloads are ACKed: redelivery cannot fix them.
func Bind(h *MessageHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in processor",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		inc := new(model.IdentifiedIncoming)
		if err := json.Unmarshal(msg.Payload, inc); err != nil {
			h.logger.Error("undecodable fabric payload dropped", "err", err, "msg_id", msg.UUID)
			return nil
		}

		return h.processor.Handle(msg.Context(), *inc)
	}
}

// RegisterHandlers wires the single incoming-message consumer with its
// middleware chain.
func (h *MessageHandler) RegisterHandlers(router *message.Router, sub message.Subscriber) {
	router.AddMiddleware(
		middleware.CorrelationID,
		LoggingMiddleware(h.logger),
		middleware.Recoverer,
		middleware.Timeout(time.Second*30),
	)

	router.AddNoPublisherHandler(
		incomingHandlerName,
		pubsub.IncomingTopic,
		sub,
		Bind(h),
	)

	h.logger.Info("message pipeline ready", "topic", pubsub.IncomingTopic)
}
