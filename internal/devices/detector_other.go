//go:build !linux

package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ambilight/internal/logging"
)

// pollInterval is how often the port list is re-read without hotplug events.
const pollInterval = 2 * time.Second

type pollingDetector struct {
	cancel      context.CancelFunc
	lastDevices map[string]DeviceInfo
	mu          sync.Mutex
	logger      *slog.Logger
}

func newDetector() DeviceDetector {
	return &pollingDetector{
		lastDevices: make(map[string]DeviceInfo),
		logger:      logging.GetLogger("devices"),
	}
}

// FindDevices returns all currently available serial ports.
func (d *pollingDetector) FindDevices() ([]DeviceInfo, error) {
	return listPorts()
}

// StartMonitoring polls the port list and broadcasts changes.
func (d *pollingDetector) StartMonitoring(ctx context.Context, broadcaster EventBroadcaster) error {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	poll := func() {
		devices, err := d.FindDevices()
		if err != nil {
			d.logger.Debug("Error getting device data", "error", err)
			return
		}
		current := indexByPath(devices)

		d.mu.Lock()
		defer d.mu.Unlock()
		for _, change := range diffDevices(d.lastDevices, current) {
			broadcaster.BroadcastDeviceDiscovery(change.Action, change.Device, time.Now().Format(time.RFC3339))
		}
		d.lastDevices = current
	}

	poll()
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()
	return nil
}

// StopMonitoring stops the device monitoring.
func (d *pollingDetector) StopMonitoring() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
