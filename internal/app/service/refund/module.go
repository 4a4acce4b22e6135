package refund

import "go.uber.org/fx"

// Module exposes the refund service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
