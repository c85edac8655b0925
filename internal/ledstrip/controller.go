// Package ledstrip runs the strip: a mode state machine that owns the
// render loop, the transport lifecycle and fault recovery.
//
// Settings are only changed on the owner goroutine (a worker.Dispatcher).
// Each change is handed to the render loop as an immutable Settings value
// through a single-slot channel, so the loop always sees the latest
// complete snapshot and never a half-applied one. The zone map is swapped
// through an atomic pointer.
package ledstrip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/ambilight/internal/devices"
	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/logging"
	"github.com/smazurov/ambilight/internal/metrics"
	"github.com/smazurov/ambilight/internal/protocol"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/worker"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// Timing of the render loop.
const (
	DefaultRetryDelay = 2 * time.Second
	BatchSize         = 5
	BatchInterval     = 10 * time.Millisecond
	AudioInterval     = 20 * time.Millisecond

	ownerTimeout = 5 * time.Second
	pauseTimeout = time.Second
)

// Errors returned by the setters.
var (
	ErrNoTransport  = errors.New("ledstrip: transport is required")
	ErrInvalidMode  = errors.New("ledstrip: unknown mode")
	ErrOwnerStopped = errors.New("ledstrip: controller stopped")
)

// Options wires a Controller to its collaborators. Only Transport is
// required.
type Options struct {
	Transport Transport
	Screen    Screen
	Audio     Audio
	Power     PowerHint

	// Bus delivers connection and hotplug events. Without it the loop is
	// only resumed by Resume.
	Bus *events.Bus

	// Settings are applied before Start.
	Settings Settings

	Logger     logging.Logger
	RetryDelay time.Duration
}

// Controller is the strip state machine.
type Controller struct {
	transport  Transport
	screen     Screen
	audio      Audio
	power      PowerHint
	bus        *events.Bus
	logger     logging.Logger
	retryDelay time.Duration

	owner  *worker.Dispatcher
	worker *worker.Worker
	cancel context.CancelFunc
	unsubs []func()

	// shared with the loop
	wake  chan Settings
	zones atomic.Pointer[zonemap.ZoneMap]

	// owner only
	settings     Settings
	userPaused   bool
	stopped      bool
	retryPending bool
	retryTimer   *time.Timer

	// loop only
	loop loopState
}

// New builds a paused controller. The initial geometry must be valid.
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if err := zonemap.Validate(opts.Settings.Geometry); err != nil {
		return nil, fmt.Errorf("initial geometry: %w", err)
	}
	if !opts.Settings.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(opts.Settings.Mode))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	c := &Controller{
		transport:  opts.Transport,
		screen:     opts.Screen,
		audio:      opts.Audio,
		power:      opts.Power,
		bus:        opts.Bus,
		logger:     logger,
		retryDelay: retryDelay,
		owner:      worker.NewDispatcher(64),
		wake:       make(chan Settings, 1),
		settings:   opts.Settings,
	}
	if l, ok := logger.(*slog.Logger); ok {
		c.owner.SetLogger(l)
	}

	c.worker = worker.New(c.iterate,
		worker.WithLoop(true),
		worker.WithName("ledstrip"),
		worker.WithDispatcher(c.owner.Dispatch),
		worker.WithOnEnded(c.onEnded),
		worker.WithLogger(logger),
	)

	m := zonemap.Build(opts.Settings.Geometry)
	c.zones.Store(m)
	metrics.SetZones(m.ZoneCount())
	metrics.SetMode(uint8(opts.Settings.Mode))
	c.resizeScreen(opts.Settings.Geometry)
	c.loop.cur = opts.Settings

	return c, nil
}

// Start runs the owner loop, subscribes to transport and hotplug events
// and resumes rendering. It returns once the loop has been resumed.
func (c *Controller) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		if err := c.owner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) &&
			!errors.Is(err, worker.ErrDispatcherClosed) {
			c.logger.Error("Owner loop stopped", "error", err)
		}
	}()

	if c.bus != nil {
		c.unsubs = append(c.unsubs,
			c.bus.Subscribe(func(e events.ConnectionStateChangedEvent) {
				c.owner.Post(func() { c.onConnection(e) })
			}),
			c.bus.Subscribe(func(e events.SerialDeviceEvent) {
				c.owner.Post(func() { c.onHotplug(e) })
			}),
		)
	}

	return c.invoke(func() {
		c.logger.Info("Starting strip", "mode", c.settings.Mode, "device", c.settings.Device,
			"zones", c.settings.Geometry.ZoneCount())
		c.resume()
	})
}

// Stop blacks out and disconnects the strip, stops the collaborators and
// the owner loop. The controller cannot be restarted.
func (c *Controller) Stop() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil

	err := c.invoke(func() {
		if c.stopped {
			return
		}
		c.stopped = true
		c.userPaused = true
		c.cancelRetry()
		c.pause()
	})
	if err != nil {
		c.worker.Pause()
	}

	if s, ok := c.screen.(Stopper); ok {
		s.Stop()
	}
	c.owner.Close()
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Strip stopped")
}

// Pause blacks out the strip, disconnects it and stops rendering until
// Resume. A scheduled fault retry is cancelled.
func (c *Controller) Pause() error {
	return c.invoke(func() {
		c.userPaused = true
		c.cancelRetry()
		c.pause()
		c.logger.Info("Strip paused")
	})
}

// Resume reconnects the configured device and restarts rendering.
func (c *Controller) Resume() error {
	return c.invoke(func() {
		if c.stopped {
			return
		}
		c.userPaused = false
		c.resume()
		c.logger.Info("Strip resumed")
	})
}

// SetMode switches the active mode.
func (c *Controller) SetMode(mode types.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, uint8(mode))
	}
	return c.invoke(func() { c.setMode(mode) })
}

// SetManualColor changes the color shown in manual mode.
func (c *Controller) SetManualColor(color types.Color) error {
	return c.invoke(func() {
		c.settings.Color = color
		c.publish()
	})
}

// SetManualBrightness changes the brightness used in manual mode.
func (c *Controller) SetManualBrightness(level uint8) error {
	return c.invoke(func() {
		c.settings.Brightness = level
		c.publish()
	})
}

// SetGeometry validates g, rebuilds the zone map and swaps it in. An
// invalid geometry is returned wrapped around zonemap.ErrInvalidGeometry
// and leaves the current map in place.
func (c *Controller) SetGeometry(g zonemap.Geometry) error {
	if err := zonemap.Validate(g); err != nil {
		return err
	}
	m := zonemap.Build(g)
	return c.invoke(func() { c.setGeometry(g, m) })
}

// SetDevice changes the serial device. Unless paused, the transport is
// switched to it right away.
func (c *Controller) SetDevice(device string) error {
	return c.invoke(func() { c.setDevice(device) })
}

// Apply changes everything that differs from s, for config reloads.
func (c *Controller) Apply(s Settings) error {
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, uint8(s.Mode))
	}
	if err := zonemap.Validate(s.Geometry); err != nil {
		return err
	}
	m := zonemap.Build(s.Geometry)

	return c.invoke(func() {
		if s.Geometry != c.settings.Geometry {
			c.setGeometry(s.Geometry, m)
		}
		if s.Device != c.settings.Device {
			c.setDevice(s.Device)
		}
		c.settings.Color = s.Color
		c.settings.Brightness = s.Brightness
		c.setMode(s.Mode)
	})
}

// Settings returns the current settings.
func (c *Controller) Settings() (Settings, error) {
	var s Settings
	err := c.invoke(func() { s = c.settings })
	return s, err
}

// Status reports the controller state.
func (c *Controller) Status() (Status, error) {
	var st Status
	err := c.invoke(func() {
		st = Status{
			Mode:         c.settings.Mode,
			Color:        c.settings.Color,
			Brightness:   c.settings.Brightness,
			Device:       c.settings.Device,
			Geometry:     c.settings.Geometry,
			Zones:        c.zones.Load().ZoneCount(),
			Connected:    c.transport.Connected(),
			Running:      c.worker.State() == worker.StateRunning,
			Paused:       c.userPaused,
			RetryPending: c.retryPending,
			Runs:         c.worker.Runs(),
		}
	})
	return st, err
}

func (c *Controller) invoke(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), ownerTimeout)
	defer cancel()
	if err := c.owner.Invoke(ctx, fn); err != nil {
		if errors.Is(err, worker.ErrDispatcherClosed) {
			return ErrOwnerStopped
		}
		return err
	}
	return nil
}

// publish hands the current settings to the loop, replacing any snapshot
// it has not picked up yet (owner only).
func (c *Controller) publish() {
	select {
	case <-c.wake:
	default:
	}
	c.wake <- c.settings
}

func (c *Controller) setMode(mode types.Mode) {
	prev := c.settings.Mode
	c.settings.Mode = mode
	c.publish()
	if prev == mode {
		return
	}

	metrics.SetMode(uint8(mode))
	c.logger.Info("Mode changed", "mode", mode, "previous", prev)
	if c.bus != nil {
		c.bus.Publish(events.ModeChangedEvent{
			Mode:      mode.String(),
			Previous:  prev.String(),
			Timestamp: events.Now(),
		})
	}
}

func (c *Controller) setGeometry(g zonemap.Geometry, m *zonemap.ZoneMap) {
	c.zones.Store(m)
	c.settings.Geometry = g
	metrics.SetZones(m.ZoneCount())
	c.resizeScreen(g)
	c.publish()
	c.logger.Info("Geometry changed", "screen", fmt.Sprintf("%dx%d", g.ScreenWidth, g.ScreenHeight),
		"horizontal", g.HorizontalLeds, "vertical", g.VerticalLeds, "corner", g.Corner)
}

func (c *Controller) setDevice(device string) {
	prev := c.settings.Device
	c.settings.Device = device
	c.publish()
	if c.userPaused || c.stopped {
		return
	}
	if device == "" {
		c.transport.Disconnect()
		return
	}
	// A new link starts a new run once its connect event arrives.
	if device != prev || !c.transport.Connected() {
		c.worker.Pause()
	}
	c.transport.Connect(device)
}

func (c *Controller) resizeScreen(g zonemap.Geometry) {
	if r, ok := c.screen.(Resizer); ok {
		r.SetSize(g.ScreenWidth, g.ScreenHeight)
	}
}

// pause stops the loop, blacks out the strip if it shows anything and
// releases the transport and audio (owner only).
func (c *Controller) pause() {
	c.worker.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), pauseTimeout)
	if err := c.worker.Wait(ctx); err != nil {
		c.logger.Warn("Render loop did not stop in time", "error", err)
	}
	cancel()

	if c.transport.Connected() && c.settings.Mode != types.ModeOff {
		if err := c.transport.Send(protocol.Concat(protocol.EncodeAll(types.Black))); err != nil {
			c.logger.Debug("Blackout frame not sent", "error", err)
		}
	}
	c.transport.Disconnect()
	if c.audio != nil {
		c.audio.Disable()
	}
	c.hold(false)
}

// resume is the inverse of pause (owner only).
func (c *Controller) resume() {
	if c.audio != nil && c.settings.Mode == types.ModeAudioSpectrum {
		c.audio.Enable()
	}
	if !c.transport.Connected() && c.settings.Device != "" {
		c.transport.Connect(c.settings.Device)
	}
	c.publish()
	c.worker.Resume()
}

func (c *Controller) cancelRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.retryPending = false
}

// onEnded runs on the owner after each loop run. A fault pauses the strip
// and schedules exactly one resume.
func (c *Controller) onEnded(e worker.Ended) {
	if e.Err == nil {
		return
	}

	metrics.IncFaults()
	c.logger.Error("Render loop fault", "error", e.Err, "retry_after", c.retryDelay)
	if c.bus != nil {
		c.bus.Publish(events.StripFaultEvent{
			Error:      e.Err.Error(),
			RetryAfter: c.retryDelay.String(),
			Timestamp:  events.Now(),
		})
	}

	if c.retryPending || c.stopped {
		return
	}
	c.pause()
	c.retryPending = true
	c.retryTimer = time.AfterFunc(c.retryDelay, func() {
		c.owner.Post(c.retry)
	})
}

func (c *Controller) retry() {
	if !c.retryPending {
		return
	}
	c.retryPending = false
	c.retryTimer = nil
	if c.userPaused || c.stopped {
		return
	}
	c.logger.Info("Retrying after fault")
	c.resume()
}

func (c *Controller) onConnection(e events.ConnectionStateChangedEvent) {
	if c.stopped {
		return
	}
	// Events are delivered late; act only when they match the link as it
	// is now.
	connected := c.transport.Connected()
	if e.Connected != connected {
		c.logger.Debug("Ignoring stale connection event", "device", e.Device, "connected", e.Connected)
		return
	}
	if !connected {
		c.logger.Debug("Transport disconnected, pausing loop", "device", e.Device, "reason", e.Reason)
		c.worker.Pause()
		return
	}
	if c.userPaused || c.retryPending {
		return
	}
	c.logger.Debug("Transport connected, resuming loop", "device", e.Device)
	c.publish()
	c.worker.Resume()
}

// onHotplug reconnects when the configured device reappears.
func (c *Controller) onHotplug(e events.SerialDeviceEvent) {
	if c.stopped || c.userPaused || e.Action != devices.ActionAdded || c.settings.Device == "" {
		return
	}
	if c.transport.Connected() || !c.isConfiguredDevice(e.Device) {
		return
	}
	c.logger.Info("Configured device plugged in, connecting", "device", e.Device)
	c.transport.Connect(c.settings.Device)
}

func (c *Controller) isConfiguredDevice(path string) bool {
	if path == c.settings.Device {
		return true
	}
	resolved, err := devices.ResolveDevicePath(c.settings.Device)
	return err == nil && resolved == path
}

func (c *Controller) hold(continuous bool) {
	if c.power != nil {
		c.power.Hold(continuous)
	}
}
