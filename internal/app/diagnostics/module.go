package diagnostics

import (
	"go.uber.org/fx"

	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
)

// Module provides the blocklist override watcher, reading its path out of
// the bridge's configuration.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, tbl *table.Table, log logger.Logger) (*BlocklistWatcher, error) {
		return NewBlocklistWatcher(cfg.BlocklistFile, tbl, log)
	}),
)
