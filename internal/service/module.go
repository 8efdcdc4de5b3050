package service

import (
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewAuthService,
			fx.As(new(Auther)),
		),
		fx.Annotate(
			NewMessageProcessor,
			fx.As(new(Processor)),
		),
	),
)
