// Package http hosts the edge listener: bind, serve and graceful shutdown,
// tied into the application lifecycle.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/exhibit-live/exhibit/config"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http-server",
	fx.Invoke(runServer),
)

// runServer binds the listener during startup so a taken port fails the
// application instead of surfacing later from a goroutine.
func runServer(lc fx.Lifecycle, logger *slog.Logger, cfg *config.Config, router chi.Router) {
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := net.JoinHostPort(cfg.ServiceAddress, cfg.ServicePort)
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}

			logger.Info("http server listening", "addr", addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
