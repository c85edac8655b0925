// Package systemd controls the unit the daemon runs as.
package systemd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/smazurov/ambilight/internal/logging"
)

// unitConn is the part of *dbus.Conn the service uses.
type unitConn interface {
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// Service queries and restarts one systemd unit over D-Bus. A connection is
// opened per call.
type Service struct {
	unit   string
	dial   func(ctx context.Context) (unitConn, error)
	logger logging.Logger
}

// NewService controls unit on the user bus, or the system bus when system
// is set.
func NewService(unit string, system bool, logger logging.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	dial := func(ctx context.Context) (unitConn, error) {
		if system {
			return dbus.NewSystemConnectionContext(ctx)
		}
		return dbus.NewUserConnectionContext(ctx)
	}
	return &Service{unit: unit, dial: dial, logger: logger}
}

// Unit returns the controlled unit name.
func (s *Service) Unit() string {
	return s.unit
}

// Status returns the unit's ActiveState (active, inactive, failed, ...).
func (s *Service) Status(ctx context.Context) (string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, s.unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("read %s state: %w", s.unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("read %s state: unexpected value %s", s.unit, prop.Value)
	}
	return state, nil
}

// Restart queues a restart job for the unit. It returns once systemd accepted
// the job; when the unit is this process the restart stops it shortly after.
func (s *Service) Restart(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	s.logger.Info("Restarting service", "unit", s.unit)
	if _, err := conn.RestartUnitContext(ctx, s.unit, "replace", nil); err != nil {
		return fmt.Errorf("restart %s: %w", s.unit, err)
	}
	return nil
}
