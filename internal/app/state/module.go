package state

import "go.uber.org/fx"

// Module provides the bridge phase manager.
var Module = fx.Options(
	fx.Provide(New),
)
