package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startDispatcher(t *testing.T) (*Dispatcher, context.CancelFunc) {
	t.Helper()
	d := NewDispatcher(16)
	d.SetLogger(newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		d.Close()
	})
	return d, cancel
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	d, _ := startDispatcher(t)

	var got []int
	for i := range 10 {
		d.Post(func() { got = append(got, i) })
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	// Invoke is queued behind the posts, so got is complete afterwards
	var snapshot []int
	if err := d.Invoke(ctx, func() { snapshot = append(snapshot, got...) }); err != nil {
		t.Fatal(err)
	}

	if len(snapshot) != 10 {
		t.Fatalf("ran %d functions, want 10", len(snapshot))
	}
	for i, v := range snapshot {
		if v != i {
			t.Fatalf("position %d ran %d", i, v)
		}
	}
}

func TestDispatcher_SurvivesPanic(t *testing.T) {
	d, _ := startDispatcher(t)

	d.Post(func() { panic("boom") })

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := d.Invoke(ctx, func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("function after panic did not run")
	}
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher(1)
	d.Close()
	d.Close()

	if d.Post(func() {}) {
		t.Error("Post() after Close = true")
	}
	if err := d.Invoke(context.Background(), func() {}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Invoke() after Close = %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Run() after Close = %v", err)
	}
}

func TestDispatcher_RunStopsOnContext(t *testing.T) {
	d := NewDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Run did not return")
	}
}
