package events

// Event type constants for kelindar/event.
const (
	TypeConnectionStateChanged uint32 = iota + 1
	TypeSerialDevice
	TypeModeChanged
	TypeStripFault
	TypeLogEntry
	TypeStripStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ConnectionStateChangedEvent is published by the serial transport whenever
// the link to the strip controller comes up or goes down.
type ConnectionStateChangedEvent struct {
	Device    string `json:"device" example:"/dev/ttyUSB0" doc:"Serial device path"`
	Connected bool   `json:"connected" example:"true" doc:"Whether the link is up"`
	Reason    string `json:"reason,omitempty" example:"write timeout" doc:"Why the link went down"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectionStateChangedEvent.
func (e ConnectionStateChangedEvent) Type() uint32 { return TypeConnectionStateChanged }

// SerialDeviceEvent represents a tty hotplug event.
type SerialDeviceEvent struct {
	Device    string `json:"device" example:"/dev/ttyUSB0" doc:"Device node"`
	Action    string `json:"action" example:"added" doc:"Action type: added, removed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SerialDeviceEvent.
func (e SerialDeviceEvent) Type() uint32 { return TypeSerialDevice }

// ModeChangedEvent is published when the strip switches to a new mode.
type ModeChangedEvent struct {
	Mode      string `json:"mode" example:"monitor" doc:"New mode"`
	Previous  string `json:"previous" example:"off" doc:"Previous mode"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// StripFaultEvent is published when the render loop stops with a fault
// and a retry has been scheduled.
type StripFaultEvent struct {
	Error      string `json:"error" example:"capture device lost" doc:"Fault description"`
	RetryAfter string `json:"retry_after" example:"2s" doc:"Delay before the loop is resumed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StripFaultEvent.
func (e StripFaultEvent) Type() uint32 { return TypeStripFault }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"ledstrip" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// StripStatsEvent carries periodic renderer statistics for SSE clients.
type StripStatsEvent struct {
	Connected       bool   `json:"connected" example:"true" doc:"Whether the serial link is up"`
	FramesSent      uint64 `json:"frames_sent" example:"1200" doc:"Protocol frames written since start"`
	BytesSent       uint64 `json:"bytes_sent" example:"4800" doc:"Bytes written since start"`
	Faults          uint64 `json:"faults" example:"0" doc:"Render loop faults since start"`
	CaptureTimeouts uint64 `json:"capture_timeouts" example:"3" doc:"Skipped screen captures"`
	CaptureMillis   string `json:"capture_ms" example:"4.20" doc:"Duration of the last capture and reduce pass"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StripStatsEvent.
func (e StripStatsEvent) Type() uint32 { return TypeStripStats }
