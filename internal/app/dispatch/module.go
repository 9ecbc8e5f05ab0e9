package dispatch

import "go.uber.org/fx"

// Module provides the dispatcher and its dependencies.
var Module = fx.Options(
	fx.Provide(New),
)
