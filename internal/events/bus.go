package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Handlers run
// asynchronously, in publish order per subscriber.
// Usage: bus.Publish(ModeChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ConnectionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SerialDeviceEvent:
		event.Publish(b.dispatcher, e)
	case ModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case StripFaultEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case StripStatsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ConnectionStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ConnectionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SerialDeviceEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StripFaultEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StripStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Now formats the current time the way event timestamps are written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
