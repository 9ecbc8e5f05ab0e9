package config

import "time"

// Application metadata
const (
	AppName = "dbusmqtt"
	Version = "0.1.0"
)

// Logging defaults
const (
	LogLevel  = "info"
	LogFormat = "console"
)

// ServicePrefix is the object-bus service name prefix this bridge mirrors.
// Services not carrying this prefix are ignored by discovery and
// NameOwnerChanged handling.
const ServicePrefix = "com.victronenergy."

// Timing constants
const (
	ShutdownTimeout = 5 * time.Second

	// QueueDrainInterval is how often the publish queue is checked for
	// pending entries, independent of the debounce gate below.
	QueueDrainInterval = 1 * time.Second

	// QueueDrainDebounce is the minimum time between two drains, so a
	// burst of updates coalesces onto a single slice instead of
	// publishing every tick.
	QueueDrainDebounce = 1500 * time.Millisecond

	// QueueDrainSlice caps how many topics are published per drain so a
	// large backlog cannot starve the broker's connection loop.
	QueueDrainSlice = 50

	// SubscriptionCleanupInterval is how often expired subscriptions are
	// swept and their exclusively-covered topics retracted.
	SubscriptionCleanupInterval = 10 * time.Second
)

// DefaultKeepAlive is the default of the --keep-alive flag: the
// subscription TTL, in seconds, given to every subscription created by a
// keep-alive or subscribe-all request. A value <= 0 disables
// the keep-alive mechanism entirely (subscriptions never expire).
const DefaultKeepAlive = 60

// SerialTopicSuffix marks the one topic that survives a service's
// disappearance: "N/<system-id>/system/0/Serial".
const SerialTopicSuffix = "/system/0/Serial"
