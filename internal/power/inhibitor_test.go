package power

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
)

type fakeLock struct {
	closed *atomic.Int32
}

func (l fakeLock) Close() error {
	l.closed.Add(1)
	return nil
}

func fakeInhibit(taken, closed *atomic.Int32, err error) InhibitFunc {
	return func(w, _, _, m string) (io.Closer, error) {
		if w != "idle" || m != "block" {
			return nil, errors.New("unexpected lock type")
		}
		if err != nil {
			return nil, err
		}
		taken.Add(1)
		return fakeLock{closed: closed}, nil
	}
}

func TestHold(t *testing.T) {
	var taken, closed atomic.Int32
	inh := NewWithFunc(fakeInhibit(&taken, &closed, nil), nil)

	inh.Hold(true)
	inh.Hold(true)
	if taken.Load() != 1 {
		t.Fatalf("taken = %d, want 1", taken.Load())
	}
	if !inh.Held() {
		t.Fatal("expected lock to be held")
	}

	inh.Hold(false)
	inh.Hold(false)
	if closed.Load() != 1 {
		t.Fatalf("closed = %d, want 1", closed.Load())
	}
	if inh.Held() {
		t.Fatal("expected lock to be released")
	}

	inh.Hold(true)
	inh.Close()
	if taken.Load() != 2 || closed.Load() != 2 {
		t.Fatalf("taken = %d closed = %d, want 2 and 2", taken.Load(), closed.Load())
	}
}

func TestHold_Failure(t *testing.T) {
	var taken, closed atomic.Int32
	inh := NewWithFunc(fakeInhibit(&taken, &closed, errors.New("access denied")), nil)

	inh.Hold(true)
	if inh.Held() {
		t.Fatal("lock should not be held after a failure")
	}
	inh.Hold(false)
	if closed.Load() != 0 {
		t.Fatalf("closed = %d, want 0", closed.Load())
	}
}

func TestHold_Disabled(t *testing.T) {
	inh := NewWithFunc(nil, nil)
	if inh.Enabled() {
		t.Fatal("expected disabled inhibitor")
	}
	inh.Hold(true)
	if inh.Held() {
		t.Fatal("disabled inhibitor must never hold a lock")
	}
	inh.Close()
}
