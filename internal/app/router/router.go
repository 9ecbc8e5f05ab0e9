// Package router implements the bridge's request router: it parses inbound
// broker messages (R/W requests, the keepalive protocol topic, and cloud
// connection-state meta-topics) and turns them into object-bus calls,
// subscription updates, and publishes. Every handler swallows its own
// errors after logging them; a malformed request never brings the bridge
// down.
package router

import (
	"context"
	"strings"
	"time"

	"dbusmqtt/internal/app/bus"
	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/errors"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/app/topic"
	"dbusmqtt/internal/app/wire"
	"dbusmqtt/internal/broker"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
	"dbusmqtt/internal/registrator"
)

const metaConnectionPrefix = "$SYS/broker/connection/"

// Router turns inbound broker messages into object-bus calls and
// subscription-registry updates.
type Router struct {
	systemID string

	bus     objectbus.Client
	broker  broker.Client
	table   *table.Table
	dir     *directory.Directory
	sub     *subscription.Registry
	pub     *publish.Publisher
	reg     registrator.Registrator
	mailbox bus.Bus
	log     logger.Logger

	keepAliveTTL time.Duration

	connectedToCloud bool
}

// New creates a Router for the given system id.
func New(
	systemID string,
	objBus objectbus.Client,
	brokerClient broker.Client,
	tbl *table.Table,
	dir *directory.Directory,
	sub *subscription.Registry,
	pub *publish.Publisher,
	keepAliveTTL time.Duration,
	reg registrator.Registrator,
	mailbox bus.Bus,
	log logger.Logger,
) *Router {
	return &Router{
		systemID:     systemID,
		bus:          objBus,
		broker:       brokerClient,
		table:        tbl,
		dir:          dir,
		sub:          sub,
		pub:          pub,
		reg:          reg,
		mailbox:      mailbox,
		keepAliveTTL: keepAliveTTL,
		log:          log,
	}
}

// HandleMessage dispatches one inbound broker message. It never returns an
// error: every failure is logged and the message is dropped.
func (r *Router) HandleMessage(ctx context.Context, fullTopic string, payload []byte) {
	if strings.HasPrefix(fullTopic, metaConnectionPrefix) {
		r.handleMeta(ctx, fullTopic, payload)

		return
	}

	action, sysID, remainder, ok := splitRequest(fullTopic)
	if !ok {
		r.log.Warn().Str("topic", fullTopic).Err(errors.ErrMalformedTopic).Msg("dropping malformed request topic")

		return
	}

	if sysID != r.systemID {
		r.log.Warn().Str("topic", fullTopic).Err(errors.ErrUnknownSystemID).Msg("dropping request for unknown system id")

		return
	}

	notifyTopic := "N/" + sysID + "/" + remainder

	switch action {
	case "W":
		r.handleWrite(ctx, notifyTopic, payload)
	case "R":
		r.handleRead(ctx, notifyTopic, remainder, payload)
	default:
		r.log.Warn().Str("topic", fullTopic).Msg("dropping request with unrecognized action")
	}
}

func splitRequest(fullTopic string) (action, systemID, remainder string, ok bool) {
	parts := strings.SplitN(fullTopic, "/", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}

	return parts[0], parts[1], parts[2], true
}

func (r *Router) handleWrite(ctx context.Context, notifyTopic string, payload []byte) {
	value, err := wire.Decode(payload)
	if err != nil {
		r.log.Warn().Str("topic", notifyTopic).Err(err).Msg("dropping malformed write payload")

		return
	}

	ownerID, path, ok := r.resolveOwnerPath(ctx, notifyTopic)
	if !ok {
		r.log.Warn().Str("topic", notifyTopic).Err(errors.ErrUnknownUID).Msg("write request for unknown topic")

		return
	}

	if err := r.bus.SetValue(ctx, ownerID, path, value); err != nil {
		r.log.Warn().Str("topic", notifyTopic).Err(errors.ErrWritePropagation).Msg("failed to propagate write to object bus")

		return
	}

	r.register(notifyTopic, ownerID, path, value)

	// A successful write must reach subscribers without waiting out the
	// queue's debounce timer.
	r.mailbox.Publish(bus.Message{Type: bus.EventIdleDrain})
}

// resolveOwnerPath resolves notifyTopic to the owner id and object path
// that back it. The table only knows about a topic once discovery or a
// property-change signal has placed it there; a path that exists on the
// object bus but was never touched either way (it can still be read or
// written) is resolved the slow way instead, through the service
// directory: split the short name back out of notifyTopic, look up which
// full service name currently backs it, and ask the bus who that name's
// current owner is.
func (r *Router) resolveOwnerPath(ctx context.Context, notifyTopic string) (ownerID, path string, ok bool) {
	if ownerID, path, ok = r.table.OwnerPath(notifyTopic); ok {
		return ownerID, path, true
	}

	short := topic.Split(notifyTopic)
	if len(short) < 3 {
		return "", "", false
	}

	fullName, ok := r.dir.FullName(directory.ShortName(short[0], short[1]))
	if !ok {
		return "", "", false
	}

	ownerID, err := r.bus.NameOwner(ctx, fullName)
	if err != nil {
		return "", "", false
	}

	return ownerID, "/" + strings.Join(short[2:], "/"), true
}

// register places notifyTopic in the table if it wasn't already there, so
// a topic resolveOwnerPath only found through the directory gets a UID
// for future requests and property-change signals to match against.
// Calling this for an already-known topic is a no-op: table.AddItem never
// overwrites an existing mapping.
func (r *Router) register(notifyTopic, ownerID, path string, value objectbus.Variant) {
	short := topic.Split(notifyTopic)
	if len(short) < 3 {
		return
	}

	r.table.AddItem(table.UID(ownerID, path), short[0], short[1], path, value)
}

func (r *Router) handleRead(ctx context.Context, notifyTopic, remainder string, payload []byte) {
	switch remainder {
	case strings.TrimPrefix(config.SerialTopicSuffix, "/"):
		r.handleSubscribeAllAlias()
	case "keepalive":
		r.handleKeepalive(payload)
	default:
		r.handleSingleRead(ctx, notifyTopic)
	}
}

// handleSubscribeAllAlias implements the legacy R/<S>/system/0/Serial
// request: refresh the all-wildcard subscription, publish the serial
// topic, and re-publish every known value, unconditionally.
func (r *Router) handleSubscribeAllAlias() {
	r.sub.SubscribeAll(r.keepAliveTTL)
	r.republishAll()
}

func (r *Router) handleKeepalive(payload []byte) {
	if len(payload) == 0 {
		created := r.sub.SubscribeAll(r.keepAliveTTL)
		if created {
			r.republishAll()
		}

		return
	}

	patterns, err := wire.DecodePatterns(payload)
	if err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed keepalive payload")

		return
	}

	for _, pattern := range patterns {
		created := r.sub.Subscribe(pattern, r.keepAliveTTL)
		if !created {
			continue
		}

		r.republishMatching(topic.New(pattern))
	}
}

func (r *Router) handleSingleRead(ctx context.Context, notifyTopic string) {
	ownerID, path, ok := r.resolveOwnerPath(ctx, notifyTopic)
	if !ok {
		r.log.Warn().Str("topic", notifyTopic).Err(errors.ErrUnknownUID).Msg("read request for unknown topic")

		return
	}

	value, err := r.bus.GetValue(ctx, ownerID, path)
	if err != nil {
		r.log.Warn().Str("topic", notifyTopic).Err(err).Msg("read request failed")

		return
	}

	r.register(notifyTopic, ownerID, path, value)
	r.table.SetValue(notifyTopic, value)

	if err := r.broker.Publish(notifyTopic, wire.Encode(&value), false); err != nil {
		r.log.Warn().Str("topic", notifyTopic).Err(err).Msg("failed to publish immediate read response")
	}
}

// republishAll re-enqueues every known topic's value through the
// publisher, used when a subscribe-all subscription is (re)established.
func (r *Router) republishAll() {
	for _, fullTopic := range r.table.SortedTopics() {
		value, ok := r.table.Value(fullTopic)
		if !ok {
			continue
		}

		r.pub.Publish(fullTopic, topic.Split(fullTopic), value)
	}
}

// republishMatching enqueues every known topic whose short form matches
// pattern and isn't already published, used when a brand new
// non-all-wildcard subscription is created.
func (r *Router) republishMatching(pattern topic.Pattern) {
	for _, fullTopic := range r.table.SortedTopics() {
		if r.pub.IsPublished(fullTopic) {
			continue
		}

		short := topic.Split(fullTopic)
		if !pattern.Match(short) {
			continue
		}

		value, ok := r.table.Value(fullTopic)
		if !ok {
			continue
		}

		r.pub.Publish(fullTopic, short, value)
	}
}

func (r *Router) handleMeta(ctx context.Context, fullTopic string, payload []byte) {
	if !strings.HasSuffix(fullTopic, "/state") {
		return
	}

	connected := string(payload) == "1"

	if connected {
		r.connectedToCloud = true

		return
	}

	if r.connectedToCloud {
		r.log.Warn().Str("topic", fullTopic).Msg("cloud connection lost, re-registering")

		if r.reg != nil {
			if err := r.reg.Reconnect(ctx); err != nil {
				r.log.Warn().Err(err).Msg("cloud re-registration failed")
			}
		}
	}

	r.connectedToCloud = false
}
