package serial

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/ambilight/internal/events"
)

type fakeConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	block  chan struct{} // Write blocks until closed when set
	err    error
	closed bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.block != nil {
		<-c.block
		return 0, errors.New("port closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.buf.Write(b)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.block != nil {
		close(c.block)
	}
	c.closed = true
	return nil
}

func (c *fakeConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPort(t *testing.T, open OpenFunc) (*Port, <-chan events.ConnectionStateChangedEvent) {
	t.Helper()
	bus := events.New()
	states := make(chan events.ConnectionStateChangedEvent, 16)
	unsub := bus.Subscribe(func(e events.ConnectionStateChangedEvent) { states <- e })
	t.Cleanup(unsub)

	p := New(Options{
		WriteTimeout:    50 * time.Millisecond,
		ConnectAttempts: 3,
		RetryInterval:   10 * time.Millisecond,
		Bus:             bus,
		Open:            open,
		Logger:          testLogger(),
	})
	t.Cleanup(func() { _ = p.Close() })
	return p, states
}

func nextState(t *testing.T, states <-chan events.ConnectionStateChangedEvent) events.ConnectionStateChangedEvent {
	t.Helper()
	select {
	case e := <-states:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection event")
		return events.ConnectionStateChangedEvent{}
	}
}

func TestPort_ConnectAndSend(t *testing.T) {
	conn := &fakeConn{}
	var gotBaud int
	p, states := newTestPort(t, func(_ string, baud int) (Conn, error) {
		gotBaud = baud
		return conn, nil
	})

	p.Connect("/dev/ttyUSB0")
	ev := nextState(t, states)
	if !ev.Connected || ev.Device != "/dev/ttyUSB0" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if gotBaud != DefaultBaudRate {
		t.Errorf("baud = %d, want %d", gotBaud, DefaultBaudRate)
	}
	if !p.Connected() {
		t.Fatal("expected Connected() after event")
	}

	frame := []byte{0x04, 1, 2, 3}
	if err := p.Send(frame); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := conn.written(); !bytes.Equal(got, frame) {
		t.Errorf("written = %v, want %v", got, frame)
	}
}

func TestPort_ConnectRetries(t *testing.T) {
	var calls atomic.Int32
	p, states := newTestPort(t, func(string, int) (Conn, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("busy")
		}
		return &fakeConn{}, nil
	})

	p.Connect("/dev/ttyUSB0")
	if ev := nextState(t, states); !ev.Connected {
		t.Fatalf("expected connection on third attempt, got %+v", ev)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("open calls = %d, want 3", got)
	}
}

func TestPort_ConnectGivesUp(t *testing.T) {
	var calls atomic.Int32
	p, states := newTestPort(t, func(string, int) (Conn, error) {
		calls.Add(1)
		return nil, errors.New("no such device")
	})

	p.Connect("/dev/ttyUSB9")
	ev := nextState(t, states)
	if ev.Connected || ev.Reason == "" {
		t.Fatalf("expected failure event with reason, got %+v", ev)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("open calls = %d, want 3", got)
	}
	if p.Connected() {
		t.Error("expected disconnected")
	}
}

func TestPort_SendNotConnected(t *testing.T) {
	p, _ := newTestPort(t, func(string, int) (Conn, error) { return &fakeConn{}, nil })

	if err := p.Send([]byte{1, 2, 3, 4}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestPort_WriteTimeoutDisconnects(t *testing.T) {
	conn := &fakeConn{block: make(chan struct{})}
	p, states := newTestPort(t, func(string, int) (Conn, error) { return conn, nil })

	p.Connect("/dev/ttyUSB0")
	nextState(t, states)

	err := p.Send([]byte{1, 2, 3, 4})
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Send() error = %v, want ErrWriteTimeout", err)
	}
	if ev := nextState(t, states); ev.Connected {
		t.Errorf("expected disconnect event, got %+v", ev)
	}
	if p.Connected() || !conn.isClosed() {
		t.Error("expected port closed after stalled write")
	}
}

func TestPort_WriteErrorDisconnects(t *testing.T) {
	conn := &fakeConn{err: errors.New("i/o error")}
	p, states := newTestPort(t, func(string, int) (Conn, error) { return conn, nil })

	p.Connect("/dev/ttyUSB0")
	nextState(t, states)

	if err := p.Send([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected write error")
	}
	if ev := nextState(t, states); ev.Connected || ev.Reason != "i/o error" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPort_ConnectSameDeviceIsNoop(t *testing.T) {
	var calls atomic.Int32
	p, states := newTestPort(t, func(string, int) (Conn, error) {
		calls.Add(1)
		return &fakeConn{}, nil
	})

	p.Connect("/dev/ttyUSB0")
	nextState(t, states)
	p.Connect("/dev/ttyUSB0")

	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("open calls = %d, want 1", got)
	}
}

func TestPort_SwitchDevice(t *testing.T) {
	first := &fakeConn{}
	p, states := newTestPort(t, func(path string, _ int) (Conn, error) {
		if path == "/dev/ttyUSB0" {
			return first, nil
		}
		return &fakeConn{}, nil
	})

	p.Connect("/dev/ttyUSB0")
	nextState(t, states)

	p.Connect("/dev/ttyACM0")
	if ev := nextState(t, states); ev.Connected || ev.Device != "/dev/ttyUSB0" {
		t.Errorf("expected old device to report disconnect, got %+v", ev)
	}
	if ev := nextState(t, states); !ev.Connected || ev.Device != "/dev/ttyACM0" {
		t.Errorf("expected new device connected, got %+v", ev)
	}
	if !first.isClosed() {
		t.Error("expected first port closed")
	}
	if p.Device() != "/dev/ttyACM0" {
		t.Errorf("Device() = %q", p.Device())
	}
}

func TestPort_DisconnectCancelsAttempt(t *testing.T) {
	var calls atomic.Int32
	p, states := newTestPort(t, func(string, int) (Conn, error) {
		calls.Add(1)
		return nil, errors.New("busy")
	})
	p.opts.RetryInterval = 50 * time.Millisecond

	p.Connect("/dev/ttyUSB0")
	time.Sleep(10 * time.Millisecond)
	p.Disconnect()
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("open calls = %d, want 1", got)
	}
	select {
	case ev := <-states:
		t.Errorf("unexpected event after cancelled attempt: %+v", ev)
	default:
	}
}
