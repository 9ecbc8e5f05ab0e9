// Package dispatch turns object-bus PropertiesChanged/ItemsChanged signals
// into topic-table updates and publish-queue entries. It is the bridge's
// runtime counterpart to discovery: discovery populates the table up
// front, dispatch keeps it current as values change.
package dispatch

import (
	"strings"

	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/app/topic"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
)

// Dispatcher applies object-bus value changes to the topic table and hands
// them to the publisher.
type Dispatcher struct {
	dir   *directory.Directory
	table *table.Table
	pub   *publish.Publisher
	log   logger.Logger
}

// New creates a Dispatcher.
func New(dir *directory.Directory, tbl *table.Table, pub *publish.Publisher, log logger.Logger) *Dispatcher {
	return &Dispatcher{dir: dir, table: tbl, pub: pub, log: log}
}

// HandlePropertyChange applies a single-path value change.
func (d *Dispatcher) HandlePropertyChange(change objectbus.PropertyChange) {
	d.apply(change.OwnerID, change.Path, change.Value)
}

// HandleItemsChange applies a bulk, multi-path value change emitted in one
// ItemsChanged signal.
func (d *Dispatcher) HandleItemsChange(change objectbus.ItemsChange) {
	for path, value := range change.Items {
		d.apply(change.OwnerID, normalizePath(path), value)
	}
}

func (d *Dispatcher) apply(ownerID, path string, value objectbus.Variant) {
	uid := table.UID(ownerID, path)

	if fullTopic, ok := d.table.Topic(uid); ok {
		d.table.SetValue(fullTopic, value)
		d.pub.Publish(fullTopic, topic.Split(fullTopic), value)

		return
	}

	// Never-before-seen UID: this is a path that didn't exist (or wasn't
	// read) during discovery. It can only be placed if the owner is
	// already registered in the directory.
	shortName, ok := d.dir.ShortNameForOwner(ownerID)
	if !ok {
		d.log.Warn().Str("owner", ownerID).Str("path", path).Msg("property change for unregistered owner dropped")

		return
	}

	serviceType, deviceInstance, ok := splitShortName(shortName)
	if !ok {
		return
	}

	fullTopic, created := d.table.AddItem(uid, serviceType, deviceInstance, path, value)
	if !created || fullTopic == "" {
		return
	}

	d.pub.Publish(fullTopic, topic.Split(fullTopic), value)
}

func splitShortName(shortName string) (serviceType, deviceInstance string, ok bool) {
	idx := strings.LastIndex(shortName, "/")
	if idx < 0 {
		return "", "", false
	}

	return shortName[:idx], shortName[idx+1:], true
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}

	return "/" + path
}
