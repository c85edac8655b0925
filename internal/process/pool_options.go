package process

import (
	"time"

	"github.com/smazurov/ambilight/internal/logging"
)

// StateChangeCallback is called when a process state changes.
type StateChangeCallback func(id string, oldState, newState State, err error)

// Spec describes how a registered process is started.
type Spec struct {
	// Command builds the argument vector at each start (required).
	Command func() ([]string, error)

	// Configure customizes the Process before start (optional).
	Configure func(proc *Process)
}

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// OnStateChange is called when process state transitions (optional).
	OnStateChange StateChangeCallback

	// RestartDelay enables automatic restart after a crash when > 0.
	RestartDelay time.Duration

	// MaxRestarts caps consecutive automatic restarts. 0 means unlimited.
	MaxRestarts int

	// Logger for pool operations. If nil, uses slog.Default().
	Logger logging.Logger
}
