package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dbusmqtt/internal/config/logger"
)

// MessageType represents the kind of event flowing through the bridge's
// internal mailbox. Every producer goroutine (object-bus signal relay,
// broker callback relay, timers) publishes one of these; the single core
// loop goroutine is the only consumer and owns all bridge state.
type MessageType string

const (
	EventOwnerChanged      MessageType = "owner_changed"
	EventPropertiesChanged MessageType = "properties_changed"
	EventItemsChanged      MessageType = "items_changed"
	EventBrokerConnected   MessageType = "broker_connected"
	EventBrokerLost        MessageType = "broker_lost"
	EventBrokerMessage     MessageType = "broker_message"
	EventQueueTick         MessageType = "queue_tick"
	EventIdleDrain         MessageType = "idle_drain"
	EventCleanupTick       MessageType = "cleanup_tick"
	EventSignal            MessageType = "signal"
)

// Message represents a single bus message.
type Message struct {
	Type      MessageType
	Timestamp time.Time
	Data      interface{}
	Critical  bool
}

// OwnerChanged mirrors a NameOwnerChanged signal for a com.victronenergy.*
// service: a new, non-empty owner means the service appeared (or was
// replaced); an empty new owner means it disappeared.
type OwnerChanged struct {
	Service   string
	OldOwner  string
	NewOwner  string
}

// PropertiesChanged mirrors a single object's PropertiesChanged signal.
type PropertiesChanged struct {
	OwnerID string
	Path    string
	Value   interface{}
}

// ItemsChanged mirrors a bulk ItemsChanged signal covering several paths
// under one object in a single emission.
type ItemsChanged struct {
	OwnerID string
	Items   map[string]interface{}
}

// BrokerMessage is an inbound publish delivered by the broker client.
type BrokerMessage struct {
	Topic   string
	Payload []byte
}

// Signal carries a received OS signal name (used for diagnostics only; the
// core loop does not act on it beyond logging).
type Signal struct {
	Name string
}

// Bus handles pub/sub messaging between the bridge's producer goroutines
// and its single core-loop consumer.
type Bus interface {
	Subscribe(ctx context.Context) <-chan Message
	Publish(msg Message)
	Close()
}

// bus implements the Bus interface with pub/sub messaging
type bus struct {
	subscribers []chan Message
	mu          sync.RWMutex
	closed      bool
	log         logger.Logger
}

// New creates a new Bus
func New(log logger.Logger) Bus {
	return &bus{
		subscribers: make([]chan Message, 0),
		log:         log,
	}
}

// Subscribe creates a new subscription channel. The core loop is expected
// to hold exactly one such subscription for the bridge's lifetime.
func (b *bus) Subscribe(ctx context.Context) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, 256)
	b.subscribers = append(b.subscribers, ch)

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch
}

// Publish sends a message to all subscribers. A full subscriber channel
// drops the message unless Critical is set, in which case delivery is
// retried on its own goroutine so the publisher never blocks.
func (b *bus) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	msg.Timestamp = time.Now()

	if b.log != nil {
		b.log.Debug().Msg(fmt.Sprintf("%s %s", msg.Type, formatData(msg.Data)))
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			if msg.Critical {
				go func(c chan Message, m Message) {
					defer func() { recover() }()

					c <- m
				}(ch, msg)
			}
		}
	}
}

// Close closes all subscriber channels
func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}

	b.subscribers = nil
}

func (b *bus) unsubscribe(ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)

			close(ch)

			break
		}
	}
}

func formatData(data interface{}) string {
	switch d := data.(type) {
	case OwnerChanged:
		return fmt.Sprintf("{service: %s, old: %s, new: %s}", d.Service, d.OldOwner, d.NewOwner)
	case PropertiesChanged:
		return fmt.Sprintf("{owner: %s, path: %s}", d.OwnerID, d.Path)
	case ItemsChanged:
		return fmt.Sprintf("{owner: %s, items: %d}", d.OwnerID, len(d.Items))
	case BrokerMessage:
		return fmt.Sprintf("{topic: %s, bytes: %d}", d.Topic, len(d.Payload))
	case Signal:
		return fmt.Sprintf("{signal: %s}", d.Name)
	default:
		return fmt.Sprintf("%+v", data)
	}
}

// NoOp returns a no-op bus for tests that don't care about messaging.
func NoOp() Bus {
	return &noOpBus{}
}

// noOpBus implements Bus interface with no-op methods for testing
type noOpBus struct{}

func (n *noOpBus) Subscribe(ctx context.Context) <-chan Message {
	ch := make(chan Message)

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch
}

func (n *noOpBus) Publish(msg Message) {}
func (n *noOpBus) Close()              {}
