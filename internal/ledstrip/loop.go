package ledstrip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/ambilight/internal/capture"
	"github.com/smazurov/ambilight/internal/metrics"
	"github.com/smazurov/ambilight/internal/protocol"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// loopState is only touched by the render loop goroutine.
type loopState struct {
	cur Settings
	run uint64

	// applied is the mode whose frame was last sent; valid is false until
	// the first mode frame of a run.
	applied      types.Mode
	appliedValid bool

	// manualDirty forces a resend after switching into manual mode.
	manualDirty bool
	sentColor   types.Color
	sentLevel   uint8
}

// iterate is one pass of the render loop. Returning nil lets the worker
// call it again; returning an error ends the run as a fault.
func (c *Controller) iterate(ctx context.Context) error {
	l := &c.loop

	if !c.transport.Connected() {
		c.logger.Debug("Transport not connected, pausing render loop")
		c.hold(false)
		c.worker.Pause()
		return nil
	}

	// Take the newest snapshot. Anything published after this point wakes
	// the next wait.
	select {
	case s := <-c.wake:
		l.cur = s
	default:
	}
	// every run may follow a reconnect, so the mode is sent again
	if run := c.worker.Runs(); run != l.run {
		l.run = run
		l.appliedValid = false
	}

	if !l.appliedValid || l.applied != l.cur.Mode {
		if err := c.applyMode(l.cur.Mode); err != nil {
			return nil
		}
	}

	switch l.cur.Mode {
	case types.ModeManual:
		if l.manualDirty || l.sentColor != l.cur.Color || l.sentLevel != l.cur.Brightness {
			if err := c.sendManual(l.cur.Color, l.cur.Brightness); err != nil {
				return nil
			}
		}
		return c.wait(ctx, 0)

	case types.ModeMonitorColors:
		return c.renderScreen(ctx)

	case types.ModeAudioSpectrum:
		if err := c.wait(ctx, AudioInterval); err != nil {
			return err
		}
		c.sendAudio()
		return nil

	default:
		return c.wait(ctx, 0)
	}
}

// applyMode sends the mode frame and reconfigures the sources for mode.
func (c *Controller) applyMode(mode types.Mode) error {
	l := &c.loop
	if err := c.send("mode", protocol.Concat(protocol.EncodeMode(mode))); err != nil {
		return err
	}
	l.applied = mode
	l.appliedValid = true

	if mode == types.ModeManual {
		l.manualDirty = true
	}
	if c.audio != nil {
		if mode == types.ModeAudioSpectrum {
			c.audio.Enable()
		} else {
			c.audio.Disable()
		}
	}
	c.hold(mode == types.ModeMonitorColors)
	c.logger.Debug("Mode applied", "mode", mode)
	return nil
}

func (c *Controller) sendManual(color types.Color, level uint8) error {
	l := &c.loop
	if err := c.send("brightness", protocol.Concat(protocol.EncodeBrightness(level))); err != nil {
		return err
	}
	if err := c.send("all", protocol.Concat(protocol.EncodeAll(color))); err != nil {
		return err
	}
	l.manualDirty = false
	l.sentColor = color
	l.sentLevel = level
	return nil
}

// renderScreen captures one frame, reduces it to zone colors and sends
// them in batches with a short wake-interruptible pause in between.
func (c *Controller) renderScreen(ctx context.Context) error {
	if c.screen == nil {
		return c.wait(ctx, 0)
	}

	start := time.Now()
	m := c.zones.Load()
	frame, err := c.screen.CaptureFrame(ctx)
	switch {
	case errors.Is(err, capture.ErrCaptureTimeout):
		metrics.IncCaptureTimeouts()
		c.logger.Debug("Capture timed out, skipping frame")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return fmt.Errorf("screen capture: %w", err)
	}

	zones, err := zonemap.ReduceFrame(m, frame)
	if errors.Is(err, zonemap.ErrShortFrame) {
		// the screen has not caught up with a geometry change yet
		c.logger.Debug("Skipping frame", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reduce frame: %w", err)
	}
	metrics.ObserveCapture(time.Since(start))

	batches := protocol.Batch(zones, BatchSize)
	for i, batch := range batches {
		if err := c.send("zone", protocol.EncodeZones(batch)); err != nil {
			return nil
		}
		if i == len(batches)-1 {
			break
		}
		if err := c.wait(ctx, BatchInterval); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) sendAudio() {
	if c.audio == nil {
		return
	}
	left, right, ok := c.audio.Levels()
	if !ok {
		return
	}
	if err := c.send("audio", protocol.Concat(protocol.EncodeAudio(left, right))); err == nil {
		metrics.SetAudioLevels(left, right)
	}
}

// send writes data and counts it. Write failures are not faults: the
// transport drops the link and the next iteration pauses the loop.
func (c *Controller) send(kind string, data []byte) error {
	if err := c.transport.Send(data); err != nil {
		c.logger.Debug("Send failed", "kind", kind, "error", err)
		return err
	}
	metrics.AddFrames(kind, len(data)/protocol.FrameSize, len(data))
	return nil
}

// wait blocks until a new snapshot arrives, d elapses or ctx is done.
// d == 0 waits without a timeout.
func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s := <-c.wake:
		c.loop.cur = s
		return nil
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
