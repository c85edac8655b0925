package ledstrip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/ambilight/internal/capture"
	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/protocol"
)

var errLinkDown = errors.New("link down")

// fakeTransport records every Send. Connect succeeds immediately unless
// refuse is set, and publishes the change like the serial port does.
type fakeTransport struct {
	bus *events.Bus

	mu        sync.Mutex
	connected bool
	device    string
	refuse    bool
	connects  int
	sent      [][]byte
	// dropAfter disconnects the link once this many sends have succeeded.
	dropAfter int
	gate      chan struct{}
	entered   chan struct{}
}

func newFakeTransport(bus *events.Bus) *fakeTransport {
	return &fakeTransport{bus: bus}
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	gate, entered := t.gate, t.entered
	t.gate, t.entered = nil, nil
	t.mu.Unlock()

	if gate != nil {
		close(entered)
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// blockNext makes the next Connected call wait until release is closed.
func (t *fakeTransport) blockNext() (entered <-chan struct{}, release chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = make(chan struct{})
	t.entered = make(chan struct{})
	return t.entered, t.gate
}

func (t *fakeTransport) Connect(device string) {
	t.mu.Lock()
	t.connects++
	if t.refuse || (t.connected && t.device == device) {
		t.mu.Unlock()
		return
	}
	t.connected = true
	t.device = device
	t.mu.Unlock()
	t.publish(device, true, "")
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	was := t.connected
	t.connected = false
	device := t.device
	t.mu.Unlock()
	if was {
		t.publish(device, false, "closed")
	}
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return errLinkDown
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	drop := t.dropAfter > 0 && len(t.sent) >= t.dropAfter
	if drop {
		t.connected = false
		t.dropAfter = 0
	}
	device := t.device
	t.mu.Unlock()

	if drop {
		t.publish(device, false, "write failed")
	}
	return nil
}

func (t *fakeTransport) publish(device string, connected bool, reason string) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(events.ConnectionStateChangedEvent{
		Device:    device,
		Connected: connected,
		Reason:    reason,
		Timestamp: events.Now(),
	})
}

func (t *fakeTransport) setRefuse(refuse bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refuse = refuse
}

func (t *fakeTransport) setDropAfter(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropAfter = len(t.sent) + n
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

func (t *fakeTransport) sends() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// frames decodes everything sent so far.
func (t *fakeTransport) frames() []protocol.Frame {
	var stream []byte
	for _, s := range t.sends() {
		stream = append(stream, s...)
	}
	frames, err := protocol.Decode(stream)
	if err != nil {
		panic(err)
	}
	return frames
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// fakeScreen hands out queued frames or reports a timeout.
type fakeScreen struct {
	frames chan []byte
	err    chan error

	mu     sync.Mutex
	width  int
	height int
	calls  int
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{frames: make(chan []byte, 8), err: make(chan error, 8)}
}

func (s *fakeScreen) CaptureFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	select {
	case f := <-s.frames:
		return f, nil
	case err := <-s.err:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, capture.ErrCaptureTimeout
	}
}

func (s *fakeScreen) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

func (s *fakeScreen) size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

type fakeAudio struct {
	mu       sync.Mutex
	enabled  bool
	enables  int
	disables int
	left     uint8
	right    uint8
}

func (a *fakeAudio) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	a.enables++
}

func (a *fakeAudio) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.disables++
}

func (a *fakeAudio) Levels() (uint8, uint8, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.left, a.right, a.enabled
}

func (a *fakeAudio) isEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

type fakePower struct {
	mu    sync.Mutex
	holds []bool
}

func (p *fakePower) Hold(continuous bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holds = append(p.holds, continuous)
}

func (p *fakePower) last() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.holds) == 0 {
		return false, false
	}
	return p.holds[len(p.holds)-1], true
}
