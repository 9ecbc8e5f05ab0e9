package app

import (
	"go.uber.org/fx"

	"dbusmqtt/internal/app/bus"
	"dbusmqtt/internal/app/cli"
	"dbusmqtt/internal/app/diagnostics"
	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/discovery"
	"dbusmqtt/internal/app/dispatch"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/router"
	"dbusmqtt/internal/app/state"
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/bridge"
	"dbusmqtt/internal/broker"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/objectbus"
	"dbusmqtt/internal/registrator"
)

// Module wires every bridge component and the fx lifecycle hook that runs
// the daemon, mirroring the teacher's "one fx.Options per concern, one
// fx.Invoke to start the process" shape.
var Module = fx.Options(
	bus.Module,
	cli.Module,
	diagnostics.Module,
	discovery.Module,
	dispatch.Module,
	router.Module,
	state.Module,

	fx.Provide(
		directory.New,
		subscription.New,
		publish.New,
		newTable,
		newObjectBusClient,
		newBrokerClient,
		newRegistrator,
		bridge.New,
		newCLIBridge,
	),

	fx.Provide(NewApp),
	fx.Invoke(Register),
)

func newTable(cfg *config.Config) *table.Table {
	return table.New(cfg.SystemID, nil)
}

func newObjectBusClient(cfg *config.Config) (objectbus.Client, error) {
	return objectbus.Dial(cfg.DBusAddress)
}

func newBrokerClient(cfg *config.Config) broker.Client {
	return broker.New(broker.Options{
		Host:       cfg.MQTTHost,
		Port:       cfg.MQTTPort,
		ClientID:   config.AppName + "-" + cfg.SystemID,
		Username:   cfg.MQTTUser,
		Password:   cfg.MQTTPassword,
		CACertPath: cfg.CACert,
	})
}

// newRegistrator always returns the no-op cloud registrator: this bridge
// never implements the cloud provisioning protocol itself (see DESIGN.md).
func newRegistrator() registrator.Registrator {
	return registrator.NoOp{}
}

// newCLIBridge narrows the concrete *bridge.Bridge fx assembled down to the
// cli.Bridge interface cli.New depends on, so internal/app/cli never
// imports internal/bridge directly.
func newCLIBridge(b *bridge.Bridge) cli.Bridge {
	return b
}
