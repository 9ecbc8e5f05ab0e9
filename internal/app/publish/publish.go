// Package publish implements the bridge's publish path: the subscription
// gate that decides whether a changed value reaches the broker at all, and
// the insertion-ordered, last-value-wins queue that coalesces repeated
// updates to the same topic between drains.
//
// A Publisher is a single-writer structure: the bridge's core loop is the
// only caller, so none of its methods take a lock.
package publish

import (
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/objectbus"
)

// Item is one drained queue entry. A nil Value means the topic should be
// retracted (published with an empty, retained payload); a non-nil Value
// is the latest known value to publish, retained.
type Item struct {
	Topic string
	Value *objectbus.Variant
}

// Publisher tracks the published set P and the outbound coalescing queue.
type Publisher struct {
	sub *subscription.Registry

	published map[string]bool
	order     []string
	queue     map[string]*objectbus.Variant
}

// New creates a Publisher gated by the given subscription registry.
func New(sub *subscription.Registry) *Publisher {
	return &Publisher{
		sub:       sub,
		published: make(map[string]bool),
		queue:     make(map[string]*objectbus.Variant),
	}
}

// Publish enqueues value for fullTopic if it is already published, or if
// some live subscription's short-topic pattern matches short — in which
// case it is added to the published set first. Otherwise the update is
// dropped: no subscriber has ever asked for it.
func (p *Publisher) Publish(fullTopic string, short []string, value objectbus.Variant) {
	if !p.published[fullTopic] {
		if !p.sub.Match(short) {
			return
		}

		p.published[fullTopic] = true
	}

	p.enqueue(fullTopic, &value)
}

// Unpublish removes fullTopic from the published set and enqueues its
// retraction (a nil-valued queue entry).
func (p *Publisher) Unpublish(fullTopic string) {
	delete(p.published, fullTopic)
	p.enqueue(fullTopic, nil)
}

// IsPublished reports whether fullTopic is currently in the published set.
func (p *Publisher) IsPublished(fullTopic string) bool {
	return p.published[fullTopic]
}

// PublishedTopics returns every currently published full topic, used by
// the cleanup sweep to compute retractions.
func (p *Publisher) PublishedTopics() []string {
	topics := make([]string, 0, len(p.published))
	for t := range p.published {
		topics = append(topics, t)
	}

	return topics
}

func (p *Publisher) enqueue(topic string, value *objectbus.Variant) {
	if _, exists := p.queue[topic]; !exists {
		p.order = append(p.order, topic)
	}

	p.queue[topic] = value
}

// Len reports how many distinct topics are pending in the queue.
func (p *Publisher) Len() int {
	return len(p.order)
}

// Drain removes up to max topics from the front of the queue (oldest
// insertion position first) and returns them as Items, preserving the
// "last value wins, first position wins" coalescing semantics. It reports
// whether the queue still has entries left afterward.
func (p *Publisher) Drain(max int) ([]Item, bool) {
	var items []Item

	for len(items) < max && len(p.order) > 0 {
		topic := p.order[0]
		p.order = p.order[1:]

		value := p.queue[topic]
		delete(p.queue, topic)

		items = append(items, Item{Topic: topic, Value: value})
	}

	return items, len(p.order) > 0
}
