// Package bridge wires every bridge component into the single-goroutine
// core loop: object-bus signals and broker callbacks are relayed onto one
// internal mailbox, and one consuming goroutine owns all mutable state
// (the topic table, the subscription registry, the publish queue)
// without locks, the same "one writer, many producers" shape as the
// teacher's runner/bus pairing.
package bridge

import (
	"context"
	"time"

	"dbusmqtt/internal/app/bus"
	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/discovery"
	"dbusmqtt/internal/app/dispatch"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/router"
	"dbusmqtt/internal/app/state"
	"dbusmqtt/internal/app/status"
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/app/topic"
	"dbusmqtt/internal/app/wire"
	"dbusmqtt/internal/broker"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
)

// Bridge owns every bridge component and runs the core loop.
type Bridge struct {
	cfg *config.Config
	log logger.Logger

	mailbox bus.Bus
	objBus  objectbus.Client
	broker  broker.Client

	dir   *directory.Directory
	table *table.Table
	sub   *subscription.Registry
	pub   *publish.Publisher

	discovery *discovery.Engine
	dispatch  *dispatch.Dispatcher
	router    *router.Router
	state     *state.Manager

	keepAliveTTL time.Duration
	lastDrain    time.Time
}

// New assembles a Bridge from its already-constructed components.
func New(
	cfg *config.Config,
	log logger.Logger,
	mailbox bus.Bus,
	objBus objectbus.Client,
	brokerClient broker.Client,
	dir *directory.Directory,
	tbl *table.Table,
	sub *subscription.Registry,
	pub *publish.Publisher,
	disc *discovery.Engine,
	disp *dispatch.Dispatcher,
	rtr *router.Router,
	st *state.Manager,
) *Bridge {
	var keepAliveTTL time.Duration
	if cfg.KeepAliveEnabled() {
		keepAliveTTL = time.Duration(cfg.KeepAlive) * time.Second
	}

	return &Bridge{
		cfg:          cfg,
		log:          log.WithComponent("BRIDGE"),
		mailbox:      mailbox,
		objBus:       objBus,
		broker:       brokerClient,
		dir:          dir,
		table:        tbl,
		sub:          sub,
		pub:          pub,
		discovery:    disc,
		dispatch:     disp,
		router:       rtr,
		state:        st,
		keepAliveTTL: keepAliveTTL,
	}
}

// Run connects to both buses, performs the initial discovery scan,
// subscribes to the bridge's request topics, and then runs the core loop
// until ctx is cancelled. It satisfies internal/app/cli.Bridge.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.state.Fire(ctx, state.EventConnect); err != nil {
		return err
	}

	b.relayObjectBus(ctx)
	b.relayBroker(ctx)

	if err := b.broker.Connect(ctx); err != nil {
		return err
	}

	if err := b.discovery.ScanAll(ctx); err != nil {
		b.log.Warn().Err(err).Msg("initial discovery scan finished with errors")
	}

	if err := b.connectSequence(); err != nil {
		return err
	}

	if err := b.state.Fire(ctx, state.EventReady); err != nil {
		return err
	}

	if b.cfg.StatusSocket != "" {
		if err := status.Serve(ctx, b.cfg.StatusSocket, b.table, b.log); err != nil {
			b.log.Warn().Err(err).Msg("failed to start status socket")
		}
	}

	b.runTimers(ctx)

	b.loop(ctx)

	return nil
}

// connectSequence runs on every (re)connect to the broker: subscribe to
// this system's request topics and the cloud connection-state meta-topic,
// announce new-protocol support, publish the serial number once, and
// replay every known value in sorted-topic order so a client that was
// already subscribed before a reconnect sees the full current state again.
func (b *Bridge) connectSequence() error {
	systemID := b.cfg.SystemID

	for _, reqTopic := range []string{
		"R/" + systemID + "/#",
		"W/" + systemID + "/#",
		"$SYS/broker/connection/+/state",
	} {
		if err := b.broker.Subscribe(reqTopic, 0); err != nil {
			return err
		}
	}

	keepaliveTopic := "N/" + systemID + "/keepalive"
	keepaliveValue := objectbus.FromInt(1)
	if err := b.broker.Publish(keepaliveTopic, wire.Encode(&keepaliveValue), true); err != nil {
		b.log.Warn().Str("topic", keepaliveTopic).Err(err).Msg("failed to announce keepalive support")
	}

	serialTopic := "N/" + systemID + config.SerialTopicSuffix
	if value, ok := b.table.Value(serialTopic); ok {
		if err := b.broker.Publish(serialTopic, wire.Encode(&value), true); err != nil {
			b.log.Warn().Str("topic", serialTopic).Err(err).Msg("failed to publish serial number")
		}
	}

	b.sub.SubscribeAll(b.keepAliveTTL)
	b.republishAll()

	return nil
}

// republishAll re-enqueues every known topic's value through the publisher,
// the same replay router.Router performs when a subscribe-all subscription
// is (re)established.
func (b *Bridge) republishAll() {
	for _, fullTopic := range b.table.SortedTopics() {
		value, ok := b.table.Value(fullTopic)
		if !ok {
			continue
		}

		b.pub.Publish(fullTopic, topic.Split(fullTopic), value)
	}
}

// relayObjectBus forwards object-bus signal channels onto the mailbox
// until ctx is cancelled, translating each signal's Variant payload to a
// plain Go value: the mailbox never depends on the objectbus package.
func (b *Bridge) relayObjectBus(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-b.objBus.OwnerChanges():
				if !ok {
					return
				}

				b.mailbox.Publish(bus.Message{
					Type: bus.EventOwnerChanged,
					Data: bus.OwnerChanged{Service: change.Name, OldOwner: change.OldOwner, NewOwner: change.NewOwner},
				})
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-b.objBus.PropertyChanges():
				if !ok {
					return
				}

				b.mailbox.Publish(bus.Message{
					Type: bus.EventPropertiesChanged,
					Data: bus.PropertiesChanged{OwnerID: change.OwnerID, Path: change.Path, Value: change.Value.Unwrap()},
				})
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-b.objBus.ItemChanges():
				if !ok {
					return
				}

				items := make(map[string]interface{}, len(change.Items))
				for path, value := range change.Items {
					items[path] = value.Unwrap()
				}

				b.mailbox.Publish(bus.Message{
					Type: bus.EventItemsChanged,
					Data: bus.ItemsChanged{OwnerID: change.OwnerID, Items: items},
				})
			}
		}
	}()
}

func (b *Bridge) relayBroker(ctx context.Context) {
	b.broker.OnConnect(func() {
		b.mailbox.Publish(bus.Message{Type: bus.EventBrokerConnected})
	})

	b.broker.OnMessage(func(t string, payload []byte) {
		b.mailbox.Publish(bus.Message{
			Type: bus.EventBrokerMessage,
			Data: bus.BrokerMessage{Topic: t, Payload: payload},
		})
	})
}

// runTimers feeds the mailbox with the queue-drain and cleanup-sweep ticks
// until ctx is cancelled.
func (b *Bridge) runTimers(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.QueueDrainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.mailbox.Publish(bus.Message{Type: bus.EventQueueTick})
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(config.SubscriptionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.mailbox.Publish(bus.Message{Type: bus.EventCleanupTick})
			}
		}
	}()
}

// loop is the bridge's single core-loop goroutine: every mutation to the
// topic table, subscription registry, or publish queue happens here, and
// only here.
func (b *Bridge) loop(ctx context.Context) {
	ch := b.mailbox.Subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			b.drainAndStop(ctx)

			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			b.handle(ctx, msg)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, msg bus.Message) {
	switch msg.Type {
	case bus.EventOwnerChanged:
		data := msg.Data.(bus.OwnerChanged)
		b.discovery.HandleOwnerChange(ctx, objectbus.OwnerChange{Name: data.Service, OldOwner: data.OldOwner, NewOwner: data.NewOwner})

	case bus.EventPropertiesChanged:
		data := msg.Data.(bus.PropertiesChanged)
		b.dispatch.HandlePropertyChange(objectbus.PropertyChange{OwnerID: data.OwnerID, Path: data.Path, Value: objectbus.FromGo(data.Value)})

	case bus.EventItemsChanged:
		data := msg.Data.(bus.ItemsChanged)
		items := make(map[string]objectbus.Variant, len(data.Items))
		for path, value := range data.Items {
			items[path] = objectbus.FromGo(value)
		}
		b.dispatch.HandleItemsChange(objectbus.ItemsChange{OwnerID: data.OwnerID, Items: items})

	case bus.EventBrokerConnected:
		b.log.Info().Msg("broker connected")

		if err := b.connectSequence(); err != nil {
			b.log.Warn().Err(err).Msg("connect sequence failed")
		}

	case bus.EventBrokerLost:
		b.log.Warn().Msg("broker connection lost")

	case bus.EventBrokerMessage:
		data := msg.Data.(bus.BrokerMessage)
		b.router.HandleMessage(ctx, data.Topic, data.Payload)

	case bus.EventQueueTick:
		b.maybeDrain()

	case bus.EventIdleDrain:
		b.drainOnce()

	case bus.EventCleanupTick:
		b.cleanup()

	case bus.EventSignal:
		data := msg.Data.(bus.Signal)
		b.log.Debug().Str("signal", data.Name).Msg("received signal")
	}
}

// maybeDrain enforces the debounce gate: a tick only actually drains the
// queue once at least QueueDrainDebounce has elapsed since the last drain.
func (b *Bridge) maybeDrain() {
	if b.pub.Len() == 0 {
		return
	}

	if !b.lastDrain.IsZero() && time.Since(b.lastDrain) < config.QueueDrainDebounce {
		return
	}

	b.drainOnce()
}

// drainOnce publishes up to one slice's worth of queued topics and, if the
// queue still has more, immediately schedules another round through
// EventIdleDrain rather than waiting for the next tick. Draining is skipped
// entirely while the broker socket isn't connected; the queue keeps
// coalescing in memory until it comes back.
func (b *Bridge) drainOnce() {
	if !b.broker.Connected() {
		return
	}

	items, more := b.pub.Drain(config.QueueDrainSlice)
	b.lastDrain = time.Now()

	for _, item := range items {
		b.publishItem(item)
	}

	if more {
		b.mailbox.Publish(bus.Message{Type: bus.EventIdleDrain})
	}
}

func (b *Bridge) publishItem(item publish.Item) {
	var payload []byte
	if item.Value != nil {
		payload = wire.Encode(item.Value)
	}

	if err := b.broker.Publish(item.Topic, payload, true); err != nil {
		b.log.Warn().Str("topic", item.Topic).Err(err).Msg("failed to publish queued item")
	}
}

// cleanup sweeps expired subscriptions and retracts whatever they were
// exclusively covering, except the serial topic.
func (b *Bridge) cleanup() {
	serialTopic := "N/" + b.cfg.SystemID + config.SerialTopicSuffix

	published := make([]subscription.Published, 0, len(b.pub.PublishedTopics()))
	for _, t := range b.pub.PublishedTopics() {
		published = append(published, subscription.Published{Full: t, Short: topic.Split(t)})
	}

	retract := b.sub.Cleanup(published, map[string]bool{serialTopic: true})

	for _, t := range retract {
		b.pub.Unpublish(t)
	}
}

// drainAndStop runs the shutdown phase: drain whatever remains in the
// queue, then disconnect from both buses.
func (b *Bridge) drainAndStop(ctx context.Context) {
	_ = b.state.Fire(ctx, state.EventDrain)

	for b.pub.Len() > 0 {
		items, more := b.pub.Drain(config.QueueDrainSlice)
		for _, item := range items {
			b.publishItem(item)
		}

		if !more {
			break
		}
	}

	_ = b.state.Fire(ctx, state.EventShutdown)

	b.broker.Disconnect()

	if err := b.objBus.Close(); err != nil {
		b.log.Warn().Err(err).Msg("error closing object bus connection")
	}
}
