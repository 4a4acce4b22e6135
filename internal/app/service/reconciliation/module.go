package reconciliation

import "go.uber.org/fx"

// Module exposes the reconciliation engine and its scheduler via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(NewRunner),
)
