// Package brokertest provides an in-memory broker.Client fake for testing
// the publish queue and request router without a real MQTT broker.
package brokertest

import (
	"context"
	"sync"
)

// Published is one recorded Publish call.
type Published struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Fake implements broker.Client in memory, recording every publish and
// subscribe call and letting tests simulate inbound messages and
// connect/disconnect transitions.
type Fake struct {
	mu sync.Mutex

	connected   bool
	Published   []Published
	Subscribed  []string

	onConnect func()
	onMessage func(topic string, payload []byte)
}

// New creates a disconnected Fake.
func New() *Fake {
	return &Fake{}
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	cb := f.onConnect
	f.mu.Unlock()

	if cb != nil {
		cb()
	}

	return nil
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *Fake) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Subscribed = append(f.Subscribed, topic)

	return nil
}

func (f *Fake) Publish(topic string, payload []byte, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Published = append(f.Published, Published{Topic: topic, Payload: payload, Retain: retain})

	return nil
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *Fake) OnConnect(fn func()) { f.onConnect = fn }

func (f *Fake) OnMessage(fn func(topic string, payload []byte)) { f.onMessage = fn }

// Deliver simulates an inbound broker publish on a subscribed topic.
func (f *Fake) Deliver(topic string, payload []byte) {
	f.mu.Lock()
	cb := f.onMessage
	f.mu.Unlock()

	if cb != nil {
		cb(topic, payload)
	}
}

// LastPublished returns the most recent Publish call to the given topic, or
// false if none was recorded.
func (f *Fake) LastPublished(topic string) (Published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.Published) - 1; i >= 0; i-- {
		if f.Published[i].Topic == topic {
			return f.Published[i], true
		}
	}

	return Published{}, false
}
