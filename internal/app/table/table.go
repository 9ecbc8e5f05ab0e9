// Package table holds the bridge's topic table (UID -> full topic) and
// value table (full topic -> last known value), the single source of truth
// a publish or a read request consults.
package table

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"dbusmqtt/internal/objectbus"
)

// BlockedItem identifies a (service-type, path) pair the bridge never
// mirrors onto the broker, matching two entries carried by the upstream
// system this bridge descends from.
type BlockedItem struct {
	ServiceType string
	Path        string
}

// DefaultBlockedItems are compiled-in and never configurable.
var DefaultBlockedItems = []BlockedItem{
	{ServiceType: "vebus", Path: "/Interfaces/Mk2/Tunnel"},
	{ServiceType: "paygo", Path: "/LVD/Threshold"},
}

// Table maps UIDs (owner-service + path) to full topics, and full topics to
// their last known value. It is a single-writer structure: only the
// bridge's core loop ever calls AddItem or SetValue, but it uses a mutex so
// read-only diagnostics can inspect it concurrently.
type Table struct {
	mu sync.RWMutex

	systemID string
	blocked  map[BlockedItem]bool

	topics map[string]string            // uid -> full topic
	owners map[string]string            // full topic -> owner id (reverse index)
	paths  map[string]string            // full topic -> object path (reverse index)
	values map[string]objectbus.Variant // full topic -> value
}

// New creates a Table for the given system id, with the given additional
// blocked items layered on top of DefaultBlockedItems.
func New(systemID string, extraBlocked []BlockedItem) *Table {
	blocked := make(map[BlockedItem]bool, len(DefaultBlockedItems)+len(extraBlocked))

	for _, b := range DefaultBlockedItems {
		blocked[b] = true
	}

	for _, b := range extraBlocked {
		blocked[b] = true
	}

	return &Table{
		systemID: systemID,
		blocked:  blocked,
		topics:   make(map[string]string),
		owners:   make(map[string]string),
		paths:    make(map[string]string),
		values:   make(map[string]objectbus.Variant),
	}
}

// AddBlocked merges extra (service-type, path) pairs into the blocked set at
// runtime. It never removes an entry: a compiled-in or previously-added
// block can't be lifted, only added to.
func (t *Table) AddBlocked(items []BlockedItem) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range items {
		t.blocked[b] = true
	}
}

// UID returns the topic-table key for a given owner id and object path.
func UID(ownerID, path string) string {
	return ownerID + path
}

// AddItem registers a new item if its UID isn't already mapped, returning
// the full topic and whether it was newly created. An already-mapped UID
// returns its existing topic and ok=false: the caller must not re-publish.
// A blocked (serviceType, path) pair returns ("", false) and no value is
// recorded.
func (t *Table) AddItem(uid, serviceType, deviceInstance, path string, value objectbus.Variant) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.topics[uid]; ok {
		return existing, false
	}

	if t.blocked[BlockedItem{ServiceType: serviceType, Path: path}] {
		return "", false
	}

	fullTopic := fmt.Sprintf("N/%s/%s/%s%s", t.systemID, serviceType, deviceInstance, path)
	ownerID := strings.TrimSuffix(uid, path)

	t.topics[uid] = fullTopic
	t.owners[fullTopic] = ownerID
	t.paths[fullTopic] = path
	t.values[fullTopic] = value

	return fullTopic, true
}

// Topic returns the full topic mapped to uid, if any.
func (t *Table) Topic(uid string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	topic, ok := t.topics[uid]

	return topic, ok
}

// OwnerPath returns the owner id and object path that back fullTopic, the
// reverse of AddItem's topic construction. The router uses this to turn an
// incoming R/W request's notification topic back into a GetValue/SetValue
// call.
func (t *Table) OwnerPath(fullTopic string) (ownerID, path string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ownerID, ok = t.owners[fullTopic]
	if !ok {
		return "", "", false
	}

	return ownerID, t.paths[fullTopic], true
}

// SetValue updates the last known value for an already-registered topic.
func (t *Table) SetValue(fullTopic string, value objectbus.Variant) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.values[fullTopic] = value
}

// Value returns the last known value for a topic.
func (t *Table) Value(fullTopic string) (objectbus.Variant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.values[fullTopic]

	return v, ok
}

// RemoveOwnerPrefix deletes every (uid, topic, value) entry whose uid
// starts with ownerPrefix (normally the owner id + "/"), except entries
// whose topic ends with SerialTopicSuffix, which survive a service's
// disappearance. It returns the full topics that were removed and
// therefore should be retracted on the broker.
func (t *Table) RemoveOwnerPrefix(ownerPrefix string, serialSuffix string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string

	for uid, topic := range t.topics {
		if !strings.HasPrefix(uid, ownerPrefix) {
			continue
		}

		if strings.HasSuffix(topic, serialSuffix) {
			continue
		}

		delete(t.topics, uid)
		delete(t.owners, topic)
		delete(t.paths, topic)
		delete(t.values, topic)

		removed = append(removed, topic)
	}

	return removed
}

// SortedTopics returns every full topic that has a value, in lexicographic
// topic order, used to replay the full current state on connect. Values
// are read separately with Value.
func (t *Table) SortedTopics() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	topics := make([]string, 0, len(t.values))
	for topic := range t.values {
		topics = append(topics, topic)
	}

	sort.Strings(topics)

	return topics
}
