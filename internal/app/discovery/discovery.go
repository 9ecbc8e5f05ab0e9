// Package discovery implements the bridge's discovery engine: enumerating
// object-bus services, walking their value trees (bulk GetValue with an
// introspection fallback), and reacting to NameOwnerChanged signals by
// rescanning appeared services and retracting disappeared ones.
package discovery

import (
	"context"
	"strconv"
	"strings"

	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/errors"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/app/topic"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
)

// Engine scans object-bus services into the topic table and directory, and
// keeps them current as services come and go.
type Engine struct {
	client objectbus.Client
	dir    *directory.Directory
	table  *table.Table
	pub    *publish.Publisher
	log    logger.Logger
}

// New creates a discovery Engine.
func New(client objectbus.Client, dir *directory.Directory, tbl *table.Table, pub *publish.Publisher, log logger.Logger) *Engine {
	return &Engine{client: client, dir: dir, table: tbl, pub: pub, log: log}
}

// ScanAll enumerates every currently owned service carrying the bridge's
// service prefix and scans each one. Scanning never publishes: the initial
// scan only populates the topic and value tables; the bridge's connect
// sequence is what first publishes them.
func (e *Engine) ScanAll(ctx context.Context) error {
	names, err := e.client.ListNames(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if !strings.HasPrefix(name, config.ServicePrefix) {
			continue
		}

		ownerID, err := e.client.NameOwner(ctx, name)
		if err != nil {
			e.log.Warn().Str("service", name).Err(err).Msg("failed to resolve owner during initial scan")

			continue
		}

		if err := e.ScanService(ctx, ownerID, name, false); err != nil {
			e.log.Warn().Str("service", name).Err(err).Msg("service scan aborted")
		}
	}

	return nil
}

// ScanService scans one service's full value tree into the table and
// directory. doPublish controls whether newly discovered items are also
// routed through the publisher (true for services appearing after startup,
// false for the initial enumeration).
func (e *Engine) ScanService(ctx context.Context, ownerID, fullName string, doPublish bool) error {
	serviceType, err := directory.ServiceType(fullName, config.ServicePrefix)
	if err != nil {
		return err
	}

	deviceInstance := e.deviceInstance(ctx, ownerID)
	shortName := directory.ShortName(serviceType, deviceInstance)

	e.dir.Register(ownerID, fullName, shortName)

	bulk, err := e.client.GetValue(ctx, ownerID, "/")

	switch {
	case err == nil:
		return e.addBulk(ownerID, serviceType, deviceInstance, bulk, doPublish)
	case errors.Is(err, errors.ErrUnknownObject), errors.Is(err, errors.ErrUnknownMethod):
		return e.introspectRecursive(ctx, ownerID, serviceType, deviceInstance, "/", doPublish)
	case errors.Is(err, errors.ErrServiceUnknown), errors.Is(err, errors.ErrServiceDisconnected), errors.Is(err, errors.ErrNoReply):
		// The service vanished mid-scan or never answers; the scan is
		// simply abandoned rather than treated as fatal.
		return nil
	default:
		return err
	}
}

func (e *Engine) addBulk(ownerID, serviceType, deviceInstance string, bulk objectbus.Variant, doPublish bool) error {
	if bulk.Kind != objectbus.KindDict {
		return nil
	}

	for path, value := range bulk.Dict {
		e.addItem(ownerID, serviceType, deviceInstance, normalizePath(path), value, doPublish)
	}

	return nil
}

func (e *Engine) introspectRecursive(ctx context.Context, ownerID, serviceType, deviceInstance, path string, doPublish bool) error {
	document, err := e.client.Introspect(ctx, ownerID, path)
	if err != nil {
		return err
	}

	parsed, err := objectbus.ParseIntrospection(document)
	if err != nil {
		return errors.ErrMalformedIntrospect
	}

	if parsed.HasBusItem {
		value, err := e.client.GetValue(ctx, ownerID, path)
		if err != nil {
			return nil
		}

		e.addItem(ownerID, serviceType, deviceInstance, path, value, doPublish)

		return nil
	}

	for _, child := range parsed.Children {
		childPath := objectbus.JoinPath(path, child)

		if err := e.introspectRecursive(ctx, ownerID, serviceType, deviceInstance, childPath, doPublish); err != nil {
			e.log.Warn().Str("path", childPath).Err(err).Msg("introspection of child node failed")
		}
	}

	return nil
}

func (e *Engine) addItem(ownerID, serviceType, deviceInstance, path string, value objectbus.Variant, doPublish bool) {
	uid := table.UID(ownerID, path)

	fullTopic, created := e.table.AddItem(uid, serviceType, deviceInstance, path, value)
	if !created || fullTopic == "" {
		return
	}

	if doPublish {
		e.pub.Publish(fullTopic, topic.Split(fullTopic), value)
	}
}

// deviceInstance resolves a service's /DeviceInstance value, falling back
// to "0" whenever the object doesn't exist, doesn't implement the method,
// or doesn't carry an integer value.
func (e *Engine) deviceInstance(ctx context.Context, ownerID string) string {
	value, err := e.client.GetValue(ctx, ownerID, "/DeviceInstance")
	if err != nil || value.Kind != objectbus.KindInt {
		return "0"
	}

	return strconv.FormatInt(value.Int, 10)
}

// HandleOwnerChange reacts to a NameOwnerChanged signal. A new owner means
// the service appeared (or was replaced) and is rescanned with publishing
// enabled. An owner disappearing retracts every topic it owned except the
// system serial topic, which survives.
func (e *Engine) HandleOwnerChange(ctx context.Context, change objectbus.OwnerChange) []string {
	if !strings.HasPrefix(change.Name, config.ServicePrefix) {
		return nil
	}

	if change.NewOwner != "" {
		if err := e.ScanService(ctx, change.NewOwner, change.Name, true); err != nil {
			e.log.Warn().Str("service", change.Name).Err(err).Msg("rescan on new owner failed")
		}

		return nil
	}

	if change.OldOwner == "" {
		return nil
	}

	removed := e.table.RemoveOwnerPrefix(change.OldOwner+"/", config.SerialTopicSuffix)

	for _, fullTopic := range removed {
		e.pub.Unpublish(fullTopic)
	}

	e.dir.Forget(change.OldOwner, change.Name)

	return removed
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}

	return "/" + path
}
