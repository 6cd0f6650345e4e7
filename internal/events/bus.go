package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ProcessStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ProcessStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessFinishedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessAbandonedEvent:
		event.Publish(b.dispatcher, e)
	case PoolTimeoutEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e ProcessFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcessStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessAbandonedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PoolTimeoutEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// SubscribeToChannel bridges callback subscriptions to a channel for
// select loops. Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
