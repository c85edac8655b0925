package ledstrip

import "context"

// Screen produces BGRA frames matching the active geometry. A frame that
// does not arrive in time is reported with capture.ErrCaptureTimeout and
// skipped; any other error is a fault.
type Screen interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Resizer is implemented by screens that can follow geometry changes.
type Resizer interface {
	SetSize(width, height int)
}

// Stopper is implemented by screens holding a running capture.
type Stopper interface {
	Stop()
}

// Audio reports bass levels while enabled.
type Audio interface {
	Enable()
	Disable()
	// Levels returns ok=false while disabled or before the first block.
	Levels() (left, right uint8, ok bool)
}

// Transport writes protocol frames to the strip controller. It publishes
// events.ConnectionStateChangedEvent whenever the link changes and drops
// the link itself after a failed write.
type Transport interface {
	Connected() bool
	Connect(device string)
	Disconnect()
	Send(data []byte) error
}

// PowerHint keeps the host awake while continuous rendering is needed.
type PowerHint interface {
	Hold(continuous bool)
}
