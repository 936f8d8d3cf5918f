package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus the generator reports its
// pipeline progress on.
//
// Delivery is synchronous: Publish calls handlers in the caller goroutine and joins
// their errors. Sites are processed in parallel, so handlers must be safe for
// concurrent use.
type EventBus interface {
	// Publish delivers the event to every subscriber of its type and to wildcard
	// subscribers.
	Publish(event Event) error
	// PublishAsync publishes in a separate goroutine. The channel receives the joined
	// handler error and is closed.
	PublishAsync(event Event) <-chan error
	// Subscribe registers a handler for one event type, or for every type with
	// AllEvents.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error
	// Subscribers returns the number of active subscriptions.
	Subscribers() int
}

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type EventHandler func(event Event) error

type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}
