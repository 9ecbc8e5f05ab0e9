package cli

import "go.uber.org/fx"

// Module provides the cobra command tree builder.
var Module = fx.Options(
	fx.Provide(New),
)
