// Package power keeps the session from going idle while the strip mirrors
// the screen. It takes a systemd-logind "idle" inhibitor lock over D-Bus;
// when logind is not reachable every call is a no-op.
package power

import (
	"io"
	"log/slog"
	"sync"

	"github.com/coreos/go-systemd/v22/login1"

	"github.com/smazurov/ambilight/internal/logging"
)

const (
	who  = "ambilight"
	why  = "Screen colors are being mirrored to the LED strip"
	what = "idle"
	mode = "block"
)

// InhibitFunc takes an inhibitor lock. Closing the returned handle
// releases it.
type InhibitFunc func(what, who, why, mode string) (io.Closer, error)

// Inhibitor holds at most one idle lock at a time.
type Inhibitor struct {
	inhibit InhibitFunc
	release func()
	logger  logging.Logger

	mu   sync.Mutex
	lock io.Closer
}

// New connects to logind on the system bus. If the connection fails the
// returned inhibitor does nothing.
func New(logger logging.Logger) *Inhibitor {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := login1.New()
	if err != nil {
		logger.Info("logind not available, idle inhibition disabled", "error", err)
		return &Inhibitor{logger: logger}
	}

	inhibit := func(what, who, why, mode string) (io.Closer, error) {
		return conn.Inhibit(what, who, why, mode)
	}
	return &Inhibitor{inhibit: inhibit, release: conn.Close, logger: logger}
}

// NewWithFunc creates an inhibitor around fn. A nil fn gives a no-op.
func NewWithFunc(fn InhibitFunc, logger logging.Logger) *Inhibitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inhibitor{inhibit: fn, logger: logger}
}

// Enabled reports whether locks can be taken at all.
func (i *Inhibitor) Enabled() bool {
	return i.inhibit != nil
}

// Held reports whether a lock is currently held.
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lock != nil
}

// Hold takes the lock when continuous is true and releases it otherwise.
// Repeated calls with the same value do nothing. Failures are logged; the
// strip works the same without the lock.
func (i *Inhibitor) Hold(continuous bool) {
	if i.inhibit == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !continuous {
		i.releaseLocked()
		return
	}
	if i.lock != nil {
		return
	}

	lock, err := i.inhibit(what, who, why, mode)
	if err != nil {
		i.logger.Warn("Failed to take idle inhibitor", "error", err)
		return
	}
	i.lock = lock
	i.logger.Debug("Idle inhibitor taken")
}

func (i *Inhibitor) releaseLocked() {
	if i.lock == nil {
		return
	}
	if err := i.lock.Close(); err != nil {
		i.logger.Warn("Failed to release idle inhibitor", "error", err)
	}
	i.lock = nil
	i.logger.Debug("Idle inhibitor released")
}

// Close releases any lock and the D-Bus connection.
func (i *Inhibitor) Close() {
	i.mu.Lock()
	i.releaseLocked()
	i.mu.Unlock()

	if i.release != nil {
		i.release()
	}
}
