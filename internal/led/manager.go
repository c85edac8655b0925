package led

import (
	"sync"

	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/logging"
)

// State is what the status LED currently shows.
type State int

const (
	StateDisconnected State = iota // blink
	StateConnected                 // solid
	StateFault                     // heartbeat until the link comes back
)

func (s State) pattern() string {
	switch s {
	case StateConnected:
		return PatternSolid
	case StateFault:
		return PatternHeartbeat
	default:
		return PatternBlink
	}
}

// Manager drives the status LED from serial link and fault events.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	logger      logging.Logger
	unsubscribe []func()

	mu    sync.Mutex
	state State
}

// NewManager creates a manager. Call Start to subscribe.
func NewManager(controller Controller, eventBus *events.Bus, logger logging.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start shows the disconnected pattern and begins listening for events.
func (m *Manager) Start() {
	m.apply(StateDisconnected)
	m.unsubscribe = []func(){
		m.eventBus.Subscribe(func(e events.ConnectionStateChangedEvent) {
			if e.Connected {
				m.apply(StateConnected)
				return
			}
			m.mu.Lock()
			faulted := m.state == StateFault
			m.mu.Unlock()
			if !faulted {
				m.apply(StateDisconnected)
			}
		}),
		m.eventBus.Subscribe(func(e events.StripFaultEvent) {
			m.logger.Debug("Strip fault, switching status LED", "error", e.Error)
			m.apply(StateFault)
		}),
	}
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	if err := m.controller.Set(StatusLED, false, ""); err != nil {
		m.logger.Debug("Failed to switch status LED off", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

// State returns what the LED shows.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetController returns the underlying LED controller.
func (m *Manager) GetController() Controller {
	return m.controller
}

func (m *Manager) apply(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	if err := m.controller.Set(StatusLED, true, state.pattern()); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", state.pattern(), "error", err)
	}
}
