package ledstrip

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/protocol"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

const testDevice = "/dev/ttyFAKE"

var (
	red  = types.Color{R: 200}
	blue = types.Color{B: 180}
)

func testGeometry() zonemap.Geometry {
	return zonemap.Geometry{
		ScreenWidth:    64,
		ScreenHeight:   36,
		HorizontalLeds: 6,
		VerticalLeds:   4,
		Corner:         types.CornerBottomRight,
		Margin:         2,
		Thickness:      2,
	}
}

func testSettings(mode types.Mode) Settings {
	return Settings{
		Mode:       mode,
		Color:      red,
		Brightness: 100,
		Device:     testDevice,
		Geometry:   testGeometry(),
	}
}

type harness struct {
	c      *Controller
	tr     *fakeTransport
	bus    *events.Bus
	faults atomic.Int32
}

// newHarness builds a controller around fakes. Fields left nil in opts
// get defaults; call start to run it.
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{bus: events.New()}
	h.tr = newFakeTransport(h.bus)

	opts.Transport = h.tr
	opts.Bus = h.bus
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Settings == (Settings{}) {
		opts.Settings = testSettings(types.ModeOff)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.c = c

	unsub := h.bus.Subscribe(func(events.StripFaultEvent) { h.faults.Add(1) })
	t.Cleanup(func() {
		unsub()
		c.Stop()
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.c.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return st
}

func eventually(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func waitFrames(t *testing.T, tr *fakeTransport, want []protocol.Frame) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got []protocol.Frame
	for time.Now().Before(deadline) {
		got = tr.frames()
		if slices.Equal(got, want) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("frames = %v, want %v", got, want)
}

func solidFrame(g zonemap.Geometry, r, gr, b byte) []byte {
	frame := make([]byte, g.FrameSize())
	for i := 0; i < len(frame); i += 4 {
		frame[i], frame[i+1], frame[i+2], frame[i+3] = b, gr, r, 255
	}
	return frame
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Settings: testSettings(types.ModeOff)}); !errors.Is(err, ErrNoTransport) {
		t.Errorf("missing transport: error = %v, want ErrNoTransport", err)
	}

	bad := testSettings(types.ModeOff)
	bad.Geometry.HorizontalLeds = 5
	if _, err := New(Options{Transport: newFakeTransport(nil), Settings: bad}); !errors.Is(err, zonemap.ErrInvalidGeometry) {
		t.Errorf("odd zone count: error = %v, want ErrInvalidGeometry", err)
	}

	badMode := testSettings(types.Mode(9))
	if _, err := New(Options{Transport: newFakeTransport(nil), Settings: badMode}); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("unknown mode: error = %v, want ErrInvalidMode", err)
	}
}

func TestController_ManualSendsBrightnessThenColor(t *testing.T) {
	h := newHarness(t, Options{Settings: testSettings(types.ModeManual)})
	h.start(t)

	want := []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	}
	waitFrames(t, h.tr, want)

	if err := h.c.SetManualColor(blue); err != nil {
		t.Fatalf("SetManualColor() error = %v", err)
	}
	want = append(want, protocol.EncodeBrightness(100), protocol.EncodeAll(blue))
	waitFrames(t, h.tr, want)

	if err := h.c.SetManualBrightness(30); err != nil {
		t.Fatalf("SetManualBrightness() error = %v", err)
	}
	want = append(want, protocol.EncodeBrightness(30), protocol.EncodeAll(blue))
	waitFrames(t, h.tr, want)
}

// A mode flipped Off -> Manual -> Off while the loop is busy is seen only
// as its final value.
func TestController_TransientModeIsCoalesced(t *testing.T) {
	h := newHarness(t, Options{})
	h.start(t)
	waitFrames(t, h.tr, []protocol.Frame{protocol.EncodeMode(types.ModeOff)})
	h.tr.reset()
	// let the owner handle the connect event so the gate catches the loop
	time.Sleep(20 * time.Millisecond)

	entered, release := h.tr.blockNext()
	if err := h.c.SetManualBrightness(10); err != nil {
		t.Fatalf("SetManualBrightness() error = %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not start another iteration")
	}

	if err := h.c.SetMode(types.ModeManual); err != nil {
		t.Fatalf("SetMode(manual) error = %v", err)
	}
	if err := h.c.SetMode(types.ModeOff); err != nil {
		t.Fatalf("SetMode(off) error = %v", err)
	}
	close(release)

	time.Sleep(50 * time.Millisecond)
	if got := h.tr.frames(); len(got) != 0 {
		t.Fatalf("frames sent for transient mode: %v", got)
	}

	if err := h.c.SetMode(types.ModeManual); err != nil {
		t.Fatalf("SetMode(manual) error = %v", err)
	}
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(10),
		protocol.EncodeAll(red),
	})
}

func TestController_MonitorSendsBatches(t *testing.T) {
	screen := newFakeScreen()
	h := newHarness(t, Options{Screen: screen, Settings: testSettings(types.ModeMonitorColors)})
	screen.frames <- solidFrame(testGeometry(), 255, 0, 0)
	h.start(t)

	eventually(t, "three sends", func() bool { return len(h.tr.sends()) >= 3 })
	sends := h.tr.sends()

	mode := protocol.EncodeMode(types.ModeMonitorColors)
	if !slices.Equal(sends[0], mode[:]) {
		t.Fatalf("first send = %v, want mode frame", sends[0])
	}

	for i, wantIDs := range [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}} {
		batch := sends[i+1]
		if len(batch) != BatchSize*protocol.FrameSize {
			t.Fatalf("batch %d has %d bytes", i, len(batch))
		}
		zones, err := protocol.DecodeZones(batch)
		if err != nil {
			t.Fatalf("DecodeZones() error = %v", err)
		}
		for j, z := range zones {
			if z.ID != wantIDs[j] {
				t.Errorf("batch %d zone %d id = %d, want %d", i, j, z.ID, wantIDs[j])
			}
			if z.Color != (types.Color{R: 127}) {
				t.Errorf("zone %d color = %v, want gamma corrected red", z.ID, z.Color)
			}
		}
	}

	if sw, sh := screen.size(); sw != 64 || sh != 36 {
		t.Errorf("screen size = %dx%d, want 64x36", sw, sh)
	}
}

// Capture timeouts and frames that do not cover the geometry are skipped
// without a fault.
func TestController_MonitorSkipsUnusableFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "capture timeout"},
		{name: "short frame", frame: make([]byte, testGeometry().FrameSize()/2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := newFakeScreen()
			h := newHarness(t, Options{
				Screen:     screen,
				Settings:   testSettings(types.ModeMonitorColors),
				RetryDelay: time.Hour,
			})
			h.start(t)

			deadline := time.Now().Add(100 * time.Millisecond)
			for time.Now().Before(deadline) {
				if tt.frame != nil {
					select {
					case screen.frames <- tt.frame:
					default:
					}
				}
				time.Sleep(2 * time.Millisecond)
			}

			if n := h.faults.Load(); n != 0 {
				t.Fatalf("fault events = %d, want 0", n)
			}
			st := h.status(t)
			if !st.Running || st.RetryPending {
				t.Fatalf("status = %+v, want running without a retry", st)
			}
			want := []protocol.Frame{protocol.EncodeMode(types.ModeMonitorColors)}
			if got := h.tr.frames(); !slices.Equal(got, want) {
				t.Fatalf("frames = %v, want only the mode frame", got)
			}
		})
	}
}

// Losing the link mid-cycle pauses the loop without a fault; the link
// coming back resumes it.
func TestController_DisconnectSelfPauses(t *testing.T) {
	screen := newFakeScreen()
	h := newHarness(t, Options{Screen: screen, Settings: testSettings(types.ModeMonitorColors)})
	h.tr.setDropAfter(2)
	screen.frames <- solidFrame(testGeometry(), 0, 255, 0)
	h.start(t)

	eventually(t, "loop to pause", func() bool { return !h.status(t).Running })

	time.Sleep(20 * time.Millisecond)
	st := h.status(t)
	if st.Paused || st.RetryPending {
		t.Fatalf("status = %+v, want neither paused by user nor retrying", st)
	}
	if n := h.faults.Load(); n != 0 {
		t.Fatalf("fault events = %d, want 0", n)
	}

	h.tr.reset()
	h.tr.Connect(testDevice)
	eventually(t, "loop to resume", func() bool { return h.status(t).Running })
	eventually(t, "mode frame after reconnect", func() bool {
		f := h.tr.frames()
		return len(f) > 0 && f[0] == protocol.EncodeMode(types.ModeMonitorColors)
	})
}

func TestController_AudioLevels(t *testing.T) {
	audio := &fakeAudio{left: 10, right: 20}
	h := newHarness(t, Options{Audio: audio, Settings: testSettings(types.ModeAudioSpectrum)})
	h.start(t)

	want := protocol.EncodeAudio(10, 20)
	eventually(t, "audio frame", func() bool { return slices.Contains(h.tr.frames(), want) })
	if !audio.isEnabled() {
		t.Fatal("audio should be enabled in audio mode")
	}

	if err := h.c.SetMode(types.ModeOff); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	off := protocol.EncodeMode(types.ModeOff)
	eventually(t, "off mode frame", func() bool { return slices.Contains(h.tr.frames(), off) })
	eventually(t, "audio disabled", func() bool { return !audio.isEnabled() })

	time.Sleep(60 * time.Millisecond)
	frames := h.tr.frames()
	if frames[len(frames)-1] != off {
		t.Fatalf("last frame = %v, want off mode frame", frames[len(frames)-1])
	}
}

func TestController_PauseBlacksOut(t *testing.T) {
	audio := &fakeAudio{}
	power := &fakePower{}
	h := newHarness(t, Options{Audio: audio, Power: power, Settings: testSettings(types.ModeManual)})
	h.start(t)
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	})

	if err := h.c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	frames := h.tr.frames()
	if last := frames[len(frames)-1]; last != protocol.EncodeAll(types.Black) {
		t.Fatalf("last frame = %v, want blackout", last)
	}
	if h.tr.Connected() {
		t.Fatal("transport should be disconnected")
	}
	st := h.status(t)
	if !st.Paused || st.Running {
		t.Fatalf("status = %+v, want paused and not running", st)
	}
	if held, ok := power.last(); !ok || held {
		t.Fatalf("power hint = %v (set %v), want released", held, ok)
	}

	h.tr.reset()
	if err := h.c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	})
}

// Late connection events from a pause must not stop or restart the loop
// that Resume started.
func TestController_PauseResumeStartsOneRun(t *testing.T) {
	h := newHarness(t, Options{Settings: testSettings(types.ModeManual)})
	h.start(t)
	manual := []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	}
	waitFrames(t, h.tr, manual)

	for i := 0; i < 5; i++ {
		before := h.status(t).Runs
		if err := h.c.Pause(); err != nil {
			t.Fatalf("Pause() error = %v", err)
		}
		h.tr.reset()
		if err := h.c.Resume(); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
		waitFrames(t, h.tr, manual)

		time.Sleep(30 * time.Millisecond)
		st := h.status(t)
		if !st.Running || st.Runs != before+1 {
			t.Fatalf("cycle %d: status = %+v, want running with runs %d", i, st, before+1)
		}
		if got := h.tr.frames(); !slices.Equal(got, manual) {
			t.Fatalf("cycle %d: frames = %v, want %v", i, got, manual)
		}
	}
}

func TestController_ConnectionEventsFollowTransport(t *testing.T) {
	h := newHarness(t, Options{Settings: testSettings(types.ModeManual)})
	h.start(t)
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	})
	runs := h.status(t).Runs

	// the link is up, so a disconnect event is stale
	h.tr.publish(testDevice, false, "closed")
	time.Sleep(30 * time.Millisecond)
	if st := h.status(t); !st.Running || st.Runs != runs {
		t.Fatalf("status after stale disconnect = %+v, want running with runs %d", st, runs)
	}

	// the link is down, so a connect event is stale
	h.tr.Disconnect()
	eventually(t, "loop to pause", func() bool { return !h.status(t).Running })
	h.tr.publish(testDevice, true, "")
	time.Sleep(30 * time.Millisecond)
	if st := h.status(t); st.Running {
		t.Fatalf("status after stale connect = %+v, want not running", st)
	}

	h.tr.reset()
	h.tr.Connect(testDevice)
	eventually(t, "loop to resume", func() bool { return h.status(t).Running })
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	})
}

func TestController_SetDeviceResendsMode(t *testing.T) {
	h := newHarness(t, Options{Settings: testSettings(types.ModeManual)})
	h.start(t)
	manual := []protocol.Frame{
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(100),
		protocol.EncodeAll(red),
	}
	waitFrames(t, h.tr, manual)
	runs := h.status(t).Runs

	h.tr.reset()
	if err := h.c.SetDevice("/dev/ttyACM0"); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}
	waitFrames(t, h.tr, manual)
	if st := h.status(t); st.Runs != runs+1 {
		t.Fatalf("runs = %d, want %d", st.Runs, runs+1)
	}
}

func TestController_PauseInOffModeSkipsBlackout(t *testing.T) {
	h := newHarness(t, Options{})
	h.start(t)
	waitFrames(t, h.tr, []protocol.Frame{protocol.EncodeMode(types.ModeOff)})

	if err := h.c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if got := h.tr.frames(); len(got) != 1 {
		t.Fatalf("frames = %v, want only the mode frame", got)
	}
}

func TestController_FaultSchedulesOneRetry(t *testing.T) {
	screen := newFakeScreen()
	h := newHarness(t, Options{
		Screen:     screen,
		Settings:   testSettings(types.ModeMonitorColors),
		RetryDelay: 100 * time.Millisecond,
	})
	h.start(t)

	screen.err <- errors.New("capture device lost")
	eventually(t, "fault event", func() bool { return h.faults.Load() == 1 })
	if st := h.status(t); !st.RetryPending || st.Running || st.Paused {
		t.Fatalf("status after fault = %+v, want retry pending", st)
	}

	eventually(t, "retry", func() bool {
		st := h.status(t)
		return st.Running && st.Runs >= 2 && !st.RetryPending
	})

	screen.err <- errors.New("capture device lost again")
	eventually(t, "second fault event", func() bool { return h.faults.Load() == 2 })
	if err := h.c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	runs := h.status(t).Runs

	time.Sleep(250 * time.Millisecond)
	st := h.status(t)
	if st.Running || st.RetryPending || st.Runs != runs {
		t.Fatalf("status after pause = %+v, want the retry cancelled", st)
	}
}

func TestController_SetGeometry(t *testing.T) {
	screen := newFakeScreen()
	h := newHarness(t, Options{Screen: screen})
	h.start(t)

	bad := testGeometry()
	bad.VerticalLeds = 3
	if err := h.c.SetGeometry(bad); !errors.Is(err, zonemap.ErrInvalidGeometry) {
		t.Fatalf("SetGeometry(odd) error = %v, want ErrInvalidGeometry", err)
	}
	if st := h.status(t); st.Zones != 10 {
		t.Fatalf("zones = %d after rejected geometry, want 10", st.Zones)
	}

	g := testGeometry()
	g.ScreenWidth, g.ScreenHeight, g.HorizontalLeds = 80, 40, 8
	if err := h.c.SetGeometry(g); err != nil {
		t.Fatalf("SetGeometry() error = %v", err)
	}
	st := h.status(t)
	if st.Zones != 12 || st.Geometry != g {
		t.Fatalf("status = %+v, want 12 zones and the new geometry", st)
	}
	if sw, sh := screen.size(); sw != 80 || sh != 40 {
		t.Fatalf("screen size = %dx%d, want 80x40", sw, sh)
	}
}

func TestController_HotplugReconnects(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.setRefuse(true)
	h.start(t)
	eventually(t, "initial connect", func() bool { return h.tr.connectCount() == 1 })
	eventually(t, "loop to pause", func() bool { return !h.status(t).Running })

	h.bus.Publish(events.SerialDeviceEvent{Device: "/dev/ttyOTHER", Action: "added"})
	h.bus.Publish(events.SerialDeviceEvent{Device: testDevice, Action: "removed"})
	h.bus.Publish(events.SerialDeviceEvent{Device: testDevice, Action: "added"})
	eventually(t, "reconnect", func() bool { return h.tr.connectCount() == 2 })

	if err := h.c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	h.bus.Publish(events.SerialDeviceEvent{Device: testDevice, Action: "added"})
	time.Sleep(30 * time.Millisecond)
	if n := h.tr.connectCount(); n != 2 {
		t.Fatalf("connects = %d while paused, want 2", n)
	}
}

func TestController_SetDevice(t *testing.T) {
	h := newHarness(t, Options{})
	h.start(t)
	eventually(t, "initial connect", func() bool { return h.tr.connectCount() == 1 })

	if err := h.c.SetDevice("/dev/ttyACM0"); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}
	if n := h.tr.connectCount(); n != 2 {
		t.Fatalf("connects = %d, want 2", n)
	}
	s, err := h.c.Settings()
	if err != nil || s.Device != "/dev/ttyACM0" {
		t.Fatalf("Settings() = %+v, %v", s, err)
	}

	if err := h.c.SetDevice(""); err != nil {
		t.Fatalf("SetDevice(\"\") error = %v", err)
	}
	if h.tr.Connected() {
		t.Fatal("clearing the device should disconnect")
	}
}

func TestController_PowerHintFollowsMonitorMode(t *testing.T) {
	power := &fakePower{}
	h := newHarness(t, Options{Screen: newFakeScreen(), Power: power, Settings: testSettings(types.ModeMonitorColors)})
	h.start(t)

	eventually(t, "hold", func() bool {
		held, ok := power.last()
		return ok && held
	})
	if err := h.c.SetMode(types.ModeOff); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	eventually(t, "release", func() bool {
		held, ok := power.last()
		return ok && !held
	})
}

func TestController_ApplyReload(t *testing.T) {
	h := newHarness(t, Options{})
	h.start(t)
	waitFrames(t, h.tr, []protocol.Frame{protocol.EncodeMode(types.ModeOff)})

	next := testSettings(types.ModeManual)
	next.Color = blue
	next.Brightness = 42
	if err := h.c.Apply(next); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	waitFrames(t, h.tr, []protocol.Frame{
		protocol.EncodeMode(types.ModeOff),
		protocol.EncodeMode(types.ModeManual),
		protocol.EncodeBrightness(42),
		protocol.EncodeAll(blue),
	})

	bad := next
	bad.Geometry.Thickness = 0
	if err := h.c.Apply(bad); !errors.Is(err, zonemap.ErrInvalidGeometry) {
		t.Fatalf("Apply(bad) error = %v, want ErrInvalidGeometry", err)
	}
}

func TestController_StopRejectsSetters(t *testing.T) {
	h := newHarness(t, Options{Settings: testSettings(types.ModeManual)})
	h.start(t)
	eventually(t, "frames", func() bool { return len(h.tr.frames()) >= 3 })

	h.c.Stop()
	frames := h.tr.frames()
	if last := frames[len(frames)-1]; last != protocol.EncodeAll(types.Black) {
		t.Fatalf("last frame = %v, want blackout", last)
	}
	if err := h.c.SetMode(types.ModeOff); !errors.Is(err, ErrOwnerStopped) {
		t.Fatalf("SetMode() after Stop error = %v, want ErrOwnerStopped", err)
	}
}
