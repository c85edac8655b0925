package devices

import (
	"bytes"
	"strings"
)

// Kernel uevent actions.
const (
	UEventAdd    = "add"
	UEventRemove = "remove"
	UEventChange = "change"
	UEventBind   = "bind"
	UEventUnbind = "unbind"
)

// SubsystemTTY is the kernel subsystem serial ports belong to.
const SubsystemTTY = "tty"

// UEvent is a parsed kernel device event.
type UEvent struct {
	Action    string            // "add", "remove", "change", etc.
	KObj      string            // Kernel object path: /devices/pci0000:00/...
	Subsystem string            // "tty", "usb", ...
	DevName   string            // Device name relative to /dev (e.g., "ttyUSB0")
	Env       map[string]string // All environment variables from the event
}

// DevicePath returns the /dev node for the event, or "" when it has none.
func (e *UEvent) DevicePath() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/dev/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// IsSerialPort reports whether the event concerns a USB or ACM serial node,
// ignoring virtual consoles and ptys.
func (e *UEvent) IsSerialPort() bool {
	if e.Subsystem != SubsystemTTY {
		return false
	}
	name := strings.TrimPrefix(e.DevName, "/dev/")
	for _, prefix := range []string{"ttyUSB", "ttyACM", "ttyAMA", "ttyS", "rfcomm"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". Messages re-broadcast by udevd carry a
// binary "libudev" header which is skipped.
func ParseUEvent(data []byte) *UEvent {
	if len(data) == 0 {
		return nil
	}

	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] != 0 {
				continue
			}
			rest := data[i+1:]
			segment, _, _ := bytes.Cut(rest, []byte{0})
			if idx := bytes.IndexByte(segment, '@'); idx > 0 && idx < 20 && isAction(segment[:idx]) {
				data = rest
				break
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	action, kobj, ok := strings.Cut(header, "@")
	if !ok || action == "" {
		return nil
	}

	event := &UEvent{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVNAME":
			event.DevName = value
		}
	}

	return event
}

func isAction(b []byte) bool {
	for _, c := range b {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
