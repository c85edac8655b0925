package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrDispatcherClosed is returned once Close has been called.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher executes posted functions one at a time on the goroutine that
// calls Run. State that is only touched from posted functions needs no
// further locking.
type Dispatcher struct {
	queue     chan func()
	closed    chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher with a queue of the given depth.
func NewDispatcher(depth int) *Dispatcher {
	return &Dispatcher{
		queue:  make(chan func(), depth),
		closed: make(chan struct{}),
		logger: slog.Default(),
	}
}

// SetLogger replaces the logger used for recovered panics.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Post queues fn. It blocks while the queue is full and reports false if
// the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.closed:
		return false
	default:
	}
	select {
	case d.queue <- fn:
		return true
	case <-d.closed:
		return false
	}
}

// Dispatch is Post without the result, for use with WithDispatcher.
func (d *Dispatcher) Dispatch(fn func()) {
	d.Post(fn)
}

// Invoke runs fn on the dispatcher and waits for it to finish. It must not
// be called from a function running on the dispatcher.
func (d *Dispatcher) Invoke(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrDispatcherClosed
	}

	select {
	case <-finished:
		return nil
	case <-d.closed:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued functions until ctx is done or Close is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-d.queue:
			d.execute(fn)
		case <-d.closed:
			return ErrDispatcherClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatched function panicked", "panic", r)
		}
	}()
	fn()
}

// Close stops Run and rejects further posts. Queued functions are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.closed) })
}
