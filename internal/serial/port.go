// Package serial is the byte transport to the strip controller: a single
// serial port opened at 115200 baud, connected in the background with
// retries, and dropped on the first failed or stalled write.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/smazurov/ambilight/internal/devices"
	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/logging"
	"github.com/smazurov/ambilight/internal/metrics"
)

// Link defaults.
const (
	DefaultBaudRate        = 115200
	DefaultWriteTimeout    = 200 * time.Millisecond
	DefaultConnectAttempts = 10
	DefaultRetryInterval   = time.Second
)

// Errors returned by Send.
var (
	ErrNotConnected = errors.New("serial port not connected")
	ErrWriteTimeout = errors.New("serial write timed out")
)

// Conn is the part of an open port the transport uses.
type Conn interface {
	io.Writer
	io.Closer
}

// OpenFunc opens the port at path.
type OpenFunc func(path string, baudRate int) (Conn, error)

// Options configures a Port.
type Options struct {
	BaudRate        int
	WriteTimeout    time.Duration
	ConnectAttempts int
	RetryInterval   time.Duration

	// Bus receives ConnectionStateChangedEvents (optional).
	Bus *events.Bus

	// Open overrides how ports are opened (tests).
	Open OpenFunc

	Logger logging.Logger
}

// Port is a reconnecting serial transport. All methods are safe for
// concurrent use.
type Port struct {
	opts   Options
	logger logging.Logger

	writeMu sync.Mutex // serializes Send

	mu        sync.Mutex
	conn      Conn
	device    string
	connected bool
	attempt   context.CancelFunc
	attemptID uint64
}

// New creates a disconnected port.
func New(opts Options) *Port {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = DefaultConnectAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Open == nil {
		opts.Open = openSerial
	}
	var logger logging.Logger = slog.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Port{opts: opts, logger: logger}
}

func openSerial(path string, baudRate int) (Conn, error) {
	return serial.Open(path, &serial.Mode{BaudRate: baudRate})
}

// Connected reports whether the port is open.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Device returns the device of the current or last connection attempt.
func (p *Port) Device() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device
}

// Connect opens device in the background, retrying up to ConnectAttempts
// times. A pending attempt for another device is abandoned; connecting to
// the device already open is a no-op.
func (p *Port) Connect(device string) {
	p.mu.Lock()
	if p.connected && p.device == device {
		p.mu.Unlock()
		return
	}
	p.cancelAttemptLocked()
	reason := p.closeLocked()
	previous := p.device
	p.device = device

	ctx, cancel := context.WithCancel(context.Background())
	p.attempt = cancel
	p.attemptID++
	id := p.attemptID
	p.mu.Unlock()

	if reason != "" {
		p.publish(previous, false, "switching to "+device)
	}

	go p.connectLoop(ctx, id, device)
}

func (p *Port) connectLoop(ctx context.Context, id uint64, device string) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.ConnectAttempts; attempt++ {
		conn, err := p.open(device)
		if err == nil {
			p.mu.Lock()
			if p.attemptID != id || ctx.Err() != nil {
				p.mu.Unlock()
				_ = conn.Close()
				return
			}
			p.conn = conn
			p.connected = true
			p.attempt = nil
			p.mu.Unlock()

			p.logger.Info("Serial port connected", "device", device, "attempt", attempt)
			metrics.SetConnected(true)
			p.publish(device, true, "")
			return
		}

		lastErr = err
		p.logger.Debug("Serial connect attempt failed", "device", device, "attempt", attempt, "error", err)

		if attempt == p.opts.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.RetryInterval):
		}
	}

	p.mu.Lock()
	current := p.attemptID == id
	if current {
		p.attempt = nil
	}
	p.mu.Unlock()
	if !current {
		return
	}

	p.logger.Warn("Serial port unavailable", "device", device, "attempts", p.opts.ConnectAttempts, "error", lastErr)
	p.publish(device, false, fmt.Sprintf("connect failed: %v", lastErr))
}

func (p *Port) open(device string) (Conn, error) {
	path, err := devices.ResolveDevicePath(device)
	if err != nil {
		return nil, err
	}
	return p.opts.Open(path, p.opts.BaudRate)
}

// Disconnect closes the port and abandons any pending connection attempt.
func (p *Port) Disconnect() {
	p.mu.Lock()
	p.cancelAttemptLocked()
	reason := p.closeLocked()
	device := p.device
	p.mu.Unlock()

	if reason != "" {
		p.logger.Info("Serial port disconnected", "device", device)
		p.publish(device, false, "disconnected")
	}
}

// Send writes b to the port. A write that fails or outlasts WriteTimeout
// closes the port and publishes the disconnection.
func (p *Port) Send(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan error, 1)
	go func() {
		_, err := conn.Write(b)
		done <- err
	}()

	timer := time.NewTimer(p.opts.WriteTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-timer.C:
		err = ErrWriteTimeout
	}

	metrics.IncWriteErrors()
	p.logger.Warn("Serial write failed", "error", err)

	p.mu.Lock()
	dropped := p.conn == conn
	if dropped {
		p.closeLocked()
	}
	device := p.device
	p.mu.Unlock()

	if dropped {
		p.publish(device, false, err.Error())
	}
	return fmt.Errorf("send %d bytes: %w", len(b), err)
}

// Close disconnects. The port can be reconnected afterwards.
func (p *Port) Close() error {
	p.Disconnect()
	return nil
}

func (p *Port) cancelAttemptLocked() {
	if p.attempt != nil {
		p.attempt()
		p.attempt = nil
	}
	p.attemptID++
}

// closeLocked closes the open connection, returning "" if there was none.
func (p *Port) closeLocked() string {
	if p.conn == nil {
		return ""
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Debug("Error closing serial port", "error", err)
	}
	p.conn = nil
	p.connected = false
	metrics.SetConnected(false)
	return "closed"
}

func (p *Port) publish(device string, connected bool, reason string) {
	if p.opts.Bus == nil {
		return
	}
	p.opts.Bus.Publish(events.ConnectionStateChangedEvent{
		Device:    device,
		Connected: connected,
		Reason:    reason,
		Timestamp: events.Now(),
	})
}
