package router

import (
	"time"

	"go.uber.org/fx"

	"dbusmqtt/internal/app/bus"
	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/broker"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
	"dbusmqtt/internal/registrator"
)

// Module provides the router, reading the system id and keep-alive TTL out
// of the bridge's configuration.
var Module = fx.Options(
	fx.Provide(func(
		cfg *config.Config,
		objBus objectbus.Client,
		brokerClient broker.Client,
		tbl *table.Table,
		dir *directory.Directory,
		sub *subscription.Registry,
		pub *publish.Publisher,
		reg registrator.Registrator,
		mailbox bus.Bus,
		log logger.Logger,
	) *Router {
		var keepAliveTTL time.Duration
		if cfg.KeepAliveEnabled() {
			keepAliveTTL = time.Duration(cfg.KeepAlive) * time.Second
		}

		return New(cfg.SystemID, objBus, brokerClient, tbl, dir, sub, pub, keepAliveTTL, reg, mailbox, log)
	}),
)
