// Package subscription implements the bridge's TTL-based subscription
// registry: keep-alive driven entries that expire unless refreshed, and the
// periodic sweep that retracts topics no longer covered by any live
// subscription.
package subscription

import (
	"sync"
	"time"

	"dbusmqtt/internal/app/topic"
)

type entry struct {
	pattern   topic.Pattern
	timestamp time.Time
	ttl       time.Duration
}

func (e *entry) expired(now time.Time) bool {
	if e.ttl == 0 {
		return false
	}

	return now.Sub(e.timestamp) > e.ttl
}

// Published describes one currently-published topic for Cleanup: its full
// topic string (the retraction unit) and its short-topic segments (what
// patterns actually match against).
type Published struct {
	Full  string
	Short []string
}

// Registry holds the set of live subscriptions and matches published topics
// against them. All-wildcard subscriptions (subscribe-all) are kept
// distinguished so Cleanup can apply its short-circuit: while any
// all-wildcard subscription survives, nothing is ever retracted.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// New creates an empty subscription registry.
func New() *Registry {
	return &Registry{}
}

// SubscribeAll registers (or refreshes) a subscribe-all entry with the given
// TTL. It returns true only when this call created a brand new entry; a
// refresh of an existing subscribe-all returns false.
func (r *Registry) SubscribeAll(ttl time.Duration) bool {
	return r.subscribe(topic.AllWildcardPattern, ttl)
}

// Subscribe registers (or refreshes) a subscription for the given pattern
// string with the given TTL. It returns true only when this call created a
// brand new entry.
func (r *Registry) Subscribe(pattern string, ttl time.Duration) bool {
	return r.subscribe(topic.New(pattern), ttl)
}

func (r *Registry) subscribe(p topic.Pattern, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	for _, e := range r.entries {
		if e.pattern.Key() == p.Key() {
			e.timestamp = now
			e.ttl = ttl

			return false
		}
	}

	r.entries = append(r.entries, &entry{pattern: p, timestamp: now, ttl: ttl})

	return true
}

// Match reports whether any live subscription covers the given short topic.
func (r *Registry) Match(short []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.matchLocked(short)
}

func (r *Registry) matchLocked(short []string) bool {
	for _, e := range r.entries {
		if e.pattern.Match(short) {
			return true
		}
	}

	return false
}

// Cleanup sweeps expired subscriptions and returns the full topics of every
// published entry (other than those in exceptions) no longer covered by any
// surviving subscription. If nothing expired, it returns nil without
// touching published at all. If an all-wildcard subscription survives the
// sweep, every topic is still covered by definition and nil is returned
// without inspecting published.
func (r *Registry) Cleanup(published []Published, exceptions map[string]bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	var survivors []*entry
	expiredAny := false

	for _, e := range r.entries {
		if e.expired(now) {
			expiredAny = true

			continue
		}

		survivors = append(survivors, e)
	}

	if !expiredAny {
		return nil
	}

	r.entries = survivors

	for _, e := range survivors {
		if e.pattern == topic.AllWildcardPattern {
			return nil
		}
	}

	var retract []string

	for _, p := range published {
		if exceptions[p.Full] {
			continue
		}

		if !r.matchLocked(p.Short) {
			retract = append(retract, p.Full)
		}
	}

	return retract
}

// Len reports the number of live subscriptions, mainly for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
