package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/exhibit-live/exhibit/internal/handler/ws"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		ws.NewWSHandler,
		NewHandler,
		func(h *Handler) chi.Router { return h.Router() },
	),
)
