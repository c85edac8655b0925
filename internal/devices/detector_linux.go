//go:build linux

package devices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ambilight/internal/logging"
)

// settleDelay gives udev time to create symlinks and fix permissions
// before the port list is re-read.
const settleDelay = 500 * time.Millisecond

type linuxDetector struct {
	cancel      context.CancelFunc
	broadcaster EventBroadcaster
	lastDevices map[string]DeviceInfo // key is Path
	mu          sync.Mutex
	logger      *slog.Logger
}

func newDetector() DeviceDetector {
	return &linuxDetector{
		lastDevices: make(map[string]DeviceInfo),
		logger:      logging.GetLogger("devices"),
	}
}

// FindDevices returns all currently available serial ports.
func (d *linuxDetector) FindDevices() ([]DeviceInfo, error) {
	return listPorts()
}

// StartMonitoring watches tty uevents and broadcasts port changes.
func (d *linuxDetector) StartMonitoring(ctx context.Context, broadcaster EventBroadcaster) error {
	mon, err := newUEventMonitor()
	if err != nil {
		return fmt.Errorf("failed to open uevent socket: %w", err)
	}

	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.broadcaster = broadcaster

	devices, err := d.FindDevices()
	if err != nil {
		d.logger.Warn("Failed to get initial device list", "error", err)
	} else {
		for _, device := range devices {
			d.lastDevices[device.Path] = device
			d.broadcaster.BroadcastDeviceDiscovery(ActionAdded, device, time.Now().Format(time.RFC3339))
		}
		d.logger.Info("Initialized with serial ports", "count", len(devices))
	}
	d.mu.Unlock()

	uevents := make(chan UEvent, 16)
	go func() {
		defer func() { _ = mon.Close() }()
		if err := mon.Run(ctx, uevents); err != nil && ctx.Err() == nil {
			d.logger.Error("Uevent monitor error", "error", err)
		}
		close(uevents)
	}()

	go func() {
		d.logger.Info("Hotplug monitoring started for serial ports")
		for ev := range uevents {
			if ev.Action != UEventAdd && ev.Action != UEventRemove {
				continue
			}
			d.logger.Debug("Uevent", "action", ev.Action, "device", ev.DevicePath(), "kobj", ev.KObj)

			if ev.Action == UEventAdd {
				select {
				case <-time.After(settleDelay):
				case <-ctx.Done():
					return
				}
			}
			d.checkAndBroadcastDeviceChanges()
		}
		d.logger.Info("Hotplug monitor stopped")
	}()

	return nil
}

// StopMonitoring stops the device monitoring.
func (d *linuxDetector) StopMonitoring() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// checkAndBroadcastDeviceChanges re-reads the port list and broadcasts the diff.
func (d *linuxDetector) checkAndBroadcastDeviceChanges() {
	devices, err := d.FindDevices()
	if err != nil {
		d.logger.Error("Error getting device data", "error", err)
		return
	}

	current := indexByPath(devices)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, change := range diffDevices(d.lastDevices, current) {
		d.broadcaster.BroadcastDeviceDiscovery(change.Action, change.Device, time.Now().Format(time.RFC3339))
		d.logger.Info("Serial port "+change.Action, "device", change.Device.Path, "product", change.Device.Product)
	}
	d.lastDevices = current
}
