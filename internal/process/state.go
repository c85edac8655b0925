package process

import "time"

// State is the lifecycle state of a pooled process.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	// StateError follows an exit nobody asked for. A restart may be pending.
	StateError State = "error"
)

// Crashed reports whether the process exited on its own.
func (s State) Crashed() bool {
	return s == StateError
}

// Active reports whether the process is starting or running.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Info is a snapshot of one pooled process.
type Info struct {
	ID           string
	State        State
	StartedAt    time.Time
	RestartCount int
	LastError    error
}
