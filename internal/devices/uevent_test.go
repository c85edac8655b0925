package devices

import (
	"reflect"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *UEvent
	}{
		{name: "empty input", input: []byte{}},
		{name: "nil input"},
		{name: "no @ separator", input: []byte("invalid")},
		{name: "missing action", input: []byte("@/devices/foo")},
		{
			name:  "usb serial add",
			input: []byte("add@/devices/pci0000:00/usb1/1-1/1-1:1.0/ttyUSB0/tty/ttyUSB0\x00ACTION=add\x00SUBSYSTEM=tty\x00DEVNAME=ttyUSB0\x00MAJOR=188\x00"),
			expected: &UEvent{
				Action:    "add",
				KObj:      "/devices/pci0000:00/usb1/1-1/1-1:1.0/ttyUSB0/tty/ttyUSB0",
				Subsystem: "tty",
				DevName:   "ttyUSB0",
				Env: map[string]string{
					"ACTION":    "add",
					"SUBSYSTEM": "tty",
					"DEVNAME":   "ttyUSB0",
					"MAJOR":     "188",
				},
			},
		},
		{
			name:  "malformed pairs skipped",
			input: []byte("remove@/devices/x\x00SUBSYSTEM=usb\x00garbage\x00=novalue\x00"),
			expected: &UEvent{
				Action:    "remove",
				KObj:      "/devices/x",
				Subsystem: "usb",
				Env:       map[string]string{"SUBSYSTEM": "usb"},
			},
		},
		{
			name:  "libudev header skipped",
			input: append([]byte("libudev\x00\xfe\xed\xca\xfe\x00"), []byte("add@/devices/acm\x00SUBSYSTEM=tty\x00DEVNAME=ttyACM0\x00")...),
			expected: &UEvent{
				Action:    "add",
				KObj:      "/devices/acm",
				Subsystem: "tty",
				DevName:   "ttyACM0",
				Env:       map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "ttyACM0"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUEvent(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseUEvent() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestUEventSerialFilter(t *testing.T) {
	tests := []struct {
		event    UEvent
		isSerial bool
		path     string
	}{
		{UEvent{Subsystem: "tty", DevName: "ttyUSB0"}, true, "/dev/ttyUSB0"},
		{UEvent{Subsystem: "tty", DevName: "ttyACM1"}, true, "/dev/ttyACM1"},
		{UEvent{Subsystem: "tty", DevName: "tty3"}, false, "/dev/tty3"},
		{UEvent{Subsystem: "tty", DevName: "pts/2"}, false, "/dev/pts/2"},
		{UEvent{Subsystem: "usb", DevName: "bus/usb/001/004"}, false, "/dev/bus/usb/001/004"},
		{UEvent{Subsystem: "tty"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.event.DevName, func(t *testing.T) {
			if got := tt.event.IsSerialPort(); got != tt.isSerial {
				t.Errorf("IsSerialPort() = %v, want %v", got, tt.isSerial)
			}
			if got := tt.event.DevicePath(); got != tt.path {
				t.Errorf("DevicePath() = %q, want %q", got, tt.path)
			}
		})
	}
}
