//go:build linux

package devices

import (
	"context"
	"errors"
	"syscall"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// ueventMonitor listens for kernel device events on a netlink socket.
type ueventMonitor struct {
	fd int
}

func newUEventMonitor() (*ueventMonitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	// kernel broadcast group
	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}

	// bounded reads so ctx is checked at least once a second
	tv := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}

	return &ueventMonitor{fd: fd}, nil
}

func (m *ueventMonitor) Close() error {
	return syscall.Close(m.fd)
}

// Run delivers serial port events until ctx is cancelled.
func (m *ueventMonitor) Run(ctx context.Context, events chan<- UEvent) error {
	buf := make([]byte, 8192)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}

		event := ParseUEvent(buf[:n])
		if event == nil || !event.IsSerialPort() {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
