package led

import "github.com/smazurov/ambilight/internal/logging"

// noop implements Controller for hosts without a usable LED.
type noop struct {
	logger logging.Logger
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

// Set logs the request but performs no actual LED control.
func (n *noop) Set(name string, enabled bool, pattern string) error {
	n.logger.Debug("LED control not available (no-op)",
		"led", name,
		"enabled", enabled,
		"pattern", pattern)
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}

func (n *noop) Patterns() []string {
	return []string{}
}
