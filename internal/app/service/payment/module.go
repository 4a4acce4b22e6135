package payment

import "go.uber.org/fx"

// Module exposes the payment lifecycle service and its expiry sweep via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(NewSweeper),
)
