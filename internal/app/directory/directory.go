// Package directory tracks which object-bus service owns which short name
// ("<service-type>/<device-instance>") and which owner id (the bus's
// unique connection name) currently backs which full service name.
package directory

import (
	"fmt"
	"strings"
	"sync"

	"dbusmqtt/internal/app/errors"
)

// Directory holds the service directory (short name -> full service name)
// and owner directory (owner id -> full service name).
type Directory struct {
	mu sync.RWMutex

	services    map[string]string // "type/instance" -> full service name
	owners      map[string]string // owner id -> full service name
	ownerShorts map[string]string // owner id -> "type/instance"
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		services:    make(map[string]string),
		owners:      make(map[string]string),
		ownerShorts: make(map[string]string),
	}
}

// Register records that ownerID currently backs fullName, with the given
// short name.
func (d *Directory) Register(ownerID, fullName, shortName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.services[shortName] = fullName
	d.owners[ownerID] = fullName
	d.ownerShorts[ownerID] = shortName
}

// Forget removes every directory entry associated with ownerID and
// fullName, called when a service disappears (NameOwnerChanged with an
// empty new owner).
func (d *Directory) Forget(ownerID, fullName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.owners, ownerID)
	delete(d.ownerShorts, ownerID)

	for short, full := range d.services {
		if full == fullName {
			delete(d.services, short)
		}
	}
}

// ShortNameForOwner returns the "<service-type>/<device-instance>" short name
// registered for ownerID, used by the dispatch path to place a property
// change whose UID it has never seen before.
func (d *Directory) ShortNameForOwner(ownerID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	short, ok := d.ownerShorts[ownerID]

	return short, ok
}

// FullName returns the full service name registered for a short name
// ("<service-type>/<device-instance>").
func (d *Directory) FullName(shortName string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	full, ok := d.services[shortName]

	return full, ok
}

// Owner returns the full service name currently backed by ownerID.
func (d *Directory) Owner(ownerID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	full, ok := d.owners[ownerID]

	return full, ok
}

// ShortName builds "<service-type>/<device-instance>" from a service type
// and device instance, used as the directory's lookup key.
func ShortName(serviceType, deviceInstance string) string {
	return serviceType + "/" + deviceInstance
}

// ServiceType validates that name carries the bridge's required prefix and
// returns its third dotted segment (e.g. "com.victronenergy.battery.ttyO1"
// -> "battery").
func ServiceType(name, prefix string) (string, error) {
	if !strings.HasPrefix(name, prefix) {
		return "", fmt.Errorf("%w: %s", errors.ErrServiceUnknown, name)
	}

	segments := strings.Split(name, ".")
	if len(segments) < 3 {
		return "", fmt.Errorf("%w: %s", errors.ErrServiceUnknown, name)
	}

	return segments[2], nil
}

// BaseName returns the first three dotted segments of a full service name
// (e.g. "com.victronenergy.battery.ttyO1" -> "com.victronenergy.battery"),
// used to group device instances of the same service type.
func BaseName(name string) string {
	segments := strings.Split(name, ".")
	if len(segments) < 3 {
		return name
	}

	return strings.Join(segments[:3], ".")
}
