package bus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module("bus-handler",
	fx.Provide(
		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(runRouter),
)

// runRouter registers the handlers and runs the router for the life of the
// application. The router exiting on its own is a fault worth shouting about.
func runRouter(lc fx.Lifecycle, logger *slog.Logger, h *MessageHandler, router *message.Router, sub message.Subscriber) {
	h.RegisterHandlers(router, sub)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("message router stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
}
