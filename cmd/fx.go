package cmd

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"

	"github.com/exhibit-live/exhibit/config"
	httpsrv "github.com/exhibit-live/exhibit/infra/server/http"
	"github.com/exhibit-live/exhibit/internal/adapter/pubsub"
	"github.com/exhibit-live/exhibit/internal/domain/presentation"
	"github.com/exhibit-live/exhibit/internal/handler/bus"
	httphandler "github.com/exhibit-live/exhibit/internal/handler/http"
	"github.com/exhibit-live/exhibit/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideCreateKey,
			ProvidePubSub,
			func(ps *gochannel.GoChannel) message.Publisher { return ps },
			func(ps *gochannel.GoChannel) message.Subscriber { return ps },
			presentation.NewStore,
			pubsub.NewDispatcher,
		),
		service.Module,
		bus.Module,
		httphandler.Module,
		httpsrv.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideCreateKey(cfg *config.Config) (*ecdsa.PublicKey, error) {
	return cfg.CreateKey()
}

// ProvidePubSub builds the in-process message fabric. One GoChannel serves as
// both publisher and subscriber.
func ProvidePubSub(lc fx.Lifecycle, wmLogger watermill.LoggerAdapter) *gochannel.GoChannel {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ps.Close()
		},
	})
	return ps
}
