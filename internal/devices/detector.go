// Package devices finds serial ports a strip controller may be attached to
// and reports them as they come and go.
package devices

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// DeviceInfo describes a serial port.
type DeviceInfo struct {
	Path         string `json:"path"`
	Product      string `json:"product,omitempty"`
	USB          bool   `json:"usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Device actions reported to the broadcaster.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionChanged = "changed"
)

// EventBroadcaster interface for broadcasting device events
type EventBroadcaster interface {
	BroadcastDeviceDiscovery(action string, device DeviceInfo, timestamp string)
}

// DeviceDetector provides platform-specific device detection
type DeviceDetector interface {
	// FindDevices returns all currently available serial ports
	FindDevices() ([]DeviceInfo, error)

	// StartMonitoring starts monitoring for device changes
	StartMonitoring(ctx context.Context, broadcaster EventBroadcaster) error

	// StopMonitoring stops the device monitoring
	StopMonitoring()
}

// NewDetector creates a platform-specific device detector
func NewDetector() DeviceDetector {
	return newDetector()
}

// listPorts enumerates serial ports sorted by path.
func listPorts() ([]DeviceInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, DeviceInfo{
			Path:         p.Name,
			Product:      p.Product,
			USB:          p.IsUSB,
			VID:          strings.ToLower(p.VID),
			PID:          strings.ToLower(p.PID),
			SerialNumber: p.SerialNumber,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Change is one difference between two device snapshots.
type Change struct {
	Action string
	Device DeviceInfo
}

// diffDevices compares snapshots keyed by path. Removals come first, then
// additions and changes, each ordered by path.
func diffDevices(previous, current map[string]DeviceInfo) []Change {
	var removed, updated []Change
	for path, old := range previous {
		if _, ok := current[path]; !ok {
			removed = append(removed, Change{Action: ActionRemoved, Device: old})
		}
	}
	for path, dev := range current {
		old, ok := previous[path]
		switch {
		case !ok:
			updated = append(updated, Change{Action: ActionAdded, Device: dev})
		case old != dev:
			updated = append(updated, Change{Action: ActionChanged, Device: dev})
		}
	}
	byPath := func(c []Change) {
		sort.Slice(c, func(i, j int) bool { return c[i].Device.Path < c[j].Device.Path })
	}
	byPath(removed)
	byPath(updated)
	return append(removed, updated...)
}

func indexByPath(devices []DeviceInfo) map[string]DeviceInfo {
	m := make(map[string]DeviceInfo, len(devices))
	for _, d := range devices {
		m[d.Path] = d
	}
	return m
}
