package led

// Patterns understood by every Controller.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)

// StatusLED is the logical name of the indicator the Manager drives.
const StatusLED = "status"

// Controller abstracts board LEDs. Implementations map logical names such
// as "status" onto whatever the board exposes.
type Controller interface {
	// Set switches an LED on or off. pattern is one of the Pattern
	// constants; empty leaves the current pattern alone.
	Set(name string, enabled bool, pattern string) error

	// Available returns the logical LED names this controller drives.
	Available() []string

	// Patterns returns the supported patterns.
	Patterns() []string
}
