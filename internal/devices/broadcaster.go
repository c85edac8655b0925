package devices

import (
	"github.com/smazurov/ambilight/internal/events"
)

// BusBroadcaster forwards device discoveries to the event bus.
type BusBroadcaster struct {
	bus *events.Bus
}

// NewBusBroadcaster creates a broadcaster publishing SerialDeviceEvents.
func NewBusBroadcaster(bus *events.Bus) *BusBroadcaster {
	return &BusBroadcaster{bus: bus}
}

// BroadcastDeviceDiscovery publishes the change.
func (b *BusBroadcaster) BroadcastDeviceDiscovery(action string, device DeviceInfo, timestamp string) {
	b.bus.Publish(events.SerialDeviceEvent{
		Device:    device.Path,
		Action:    action,
		Timestamp: timestamp,
	})
}
