package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/ambilight/internal/logging"
)

// ErrPanicked wraps a panic recovered from a worker body.
var ErrPanicked = errors.New("worker body panicked")

// Func is the unit of work. ctx is cancelled when the worker is paused;
// bodies check it at their checkpoints and return ctx.Err() or nil.
type Func func(ctx context.Context) error

// State is the externally visible run state.
type State int32

// Worker states.
const (
	StatePaused State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "paused"
}

// Ended describes how a run finished.
type Ended struct {
	// Cancelled is set when the run stopped because of Pause.
	Cancelled bool
	// Err is the fault that ended the run, if any. Cancellation is not a
	// fault.
	Err error
}

// Option configures a Worker.
type Option func(*Worker)

// WithLoop makes the body run repeatedly until paused or failed.
func WithLoop(loop bool) Option {
	return func(w *Worker) { w.loop = loop }
}

// WithDispatcher sets how Ended notifications reach the owner. The default
// calls the handler on the worker goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(w *Worker) { w.dispatch = dispatch }
}

// WithOnEnded registers the handler for Ended notifications.
func WithOnEnded(fn func(Ended)) Option {
	return func(w *Worker) { w.onEnded = fn }
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger(logger logging.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithName labels the worker in logs and errors.
func WithName(name string) Option {
	return func(w *Worker) { w.name = name }
}

// Worker is a pausable background body.
type Worker struct {
	body     Func
	loop     bool
	dispatch func(func())
	onEnded  func(Ended)
	logger   logging.Logger
	name     string

	mu       sync.Mutex
	state    State
	stopping bool
	restart  bool
	cancel   context.CancelFunc
	done     chan struct{}
	runs     uint64
}

// New creates a paused worker around body.
func New(body Func, opts ...Option) *Worker {
	if body == nil {
		panic("worker: body is required")
	}

	w := &Worker{
		body:  body,
		name:  "worker",
		state: StatePaused,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.dispatch == nil {
		w.dispatch = func(fn func()) { fn() }
	}

	closed := make(chan struct{})
	close(closed)
	w.done = closed

	return w
}

// State returns Running from Resume until the goroutine has exited after
// a Pause or a fault.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Runs returns how many goroutines have been started so far.
func (w *Worker) Runs() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Resume starts the body unless it is already running. A Resume issued
// while a Pause is still winding down is remembered and the body restarts
// as soon as the previous goroutine has exited.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRunning {
		if w.stopping {
			w.restart = true
		}
		return
	}
	w.start()
}

// Pause cancels the running body. It does not wait for the goroutine to
// exit; use Done or Wait for that.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StatePaused {
		return
	}
	w.restart = false
	if w.stopping {
		return
	}
	w.stopping = true
	w.cancel()
	w.logger.Debug("Pausing worker", "worker", w.name)
}

// Done returns a channel closed when the current goroutine exits. It is
// already closed when nothing runs.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Wait blocks until the current goroutine exits or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start launches the goroutine (must hold lock).
func (w *Worker) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.state = StateRunning
	w.stopping = false
	w.cancel = cancel
	w.done = done
	w.runs++

	w.logger.Debug("Starting worker", "worker", w.name, "run", w.runs)
	go w.run(ctx, cancel, done)
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	err := w.execute(ctx)

	ended := Ended{Cancelled: ctx.Err() != nil, Err: err}
	if ended.Cancelled && errors.Is(err, context.Canceled) {
		ended.Err = nil
	}
	cancel()

	w.mu.Lock()
	w.state = StatePaused
	w.stopping = false
	restart := w.restart
	w.restart = false
	close(done)
	if restart {
		w.start()
	}
	w.mu.Unlock()

	if ended.Err != nil {
		w.logger.Warn("Worker stopped with fault", "worker", w.name, "error", ended.Err)
	} else {
		w.logger.Debug("Worker stopped", "worker", w.name, "cancelled", ended.Cancelled)
	}

	if w.onEnded != nil {
		w.dispatch(func() { w.onEnded(ended) })
	}
}

// execute runs the body with checkpoints between iterations. Panics are
// converted into errors.
func (w *Worker) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanicked, w.name, r)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.body(ctx); err != nil {
			return err
		}
		if !w.loop {
			return nil
		}
	}
}
