package webhook

import "go.uber.org/fx"

// Module exposes webhook ingestion via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
