// Package protocol encodes commands for the strip microcontroller.
//
// Every command is a fixed 4 byte frame [target, b1, b2, b3]. Batches are
// plain concatenations of frames; the receiver splits the stream every 4
// bytes, so there is no length prefix and no delimiter.
//
//	Mode switch      [0, mode, 1, 1]
//	Brightness       [1, level, 1, 1]
//	All zones color  [2, r, g, b]
//	Audio levels     [3, left, right, 1]
//	Zone color       [id+4, r, g, b]
package protocol

import (
	"errors"
	"fmt"

	"github.com/smazurov/ambilight/internal/types"
)

// FrameSize is the length of a single command frame.
const FrameSize = 4

// Target is the first byte of a frame.
type Target uint8

// Reserved command targets.
const (
	TargetMode       Target = 0
	TargetBrightness Target = 1
	TargetAllLeds    Target = 2
	TargetAudio      Target = 3
)

// ZoneOffset is added to a zone id to form its target byte so zone targets
// never collide with the reserved command targets.
const ZoneOffset = 4

// MaxZones is the largest even zone count whose targets still fit a byte.
const MaxZones = 252

// BatchSize is the number of zone frames grouped into one serial write.
const BatchSize = 5

// ErrRaggedFrame is returned by Decode when the stream length is not a
// multiple of FrameSize.
var ErrRaggedFrame = errors.New("protocol: stream length is not a multiple of the frame size")

// Frame is one encoded command.
type Frame [FrameSize]byte

// EncodeMode asks the controller to switch modes.
func EncodeMode(m types.Mode) Frame {
	return Frame{byte(TargetMode), byte(m), 1, 1}
}

// EncodeBrightness sets the global brightness of the strip.
func EncodeBrightness(level uint8) Frame {
	return Frame{byte(TargetBrightness), level, 1, 1}
}

// EncodeAll paints every zone with c.
func EncodeAll(c types.Color) Frame {
	return Frame{byte(TargetAllLeds), c.R, c.G, c.B}
}

// EncodeAudio sends the left and right bass levels.
func EncodeAudio(left, right uint8) Frame {
	return Frame{byte(TargetAudio), left, right, 1}
}

// EncodeZone paints a single zone. It panics when the id cannot be
// represented, which only happens with geometry that failed validation.
func EncodeZone(z types.LedZone) Frame {
	if z.ID < 0 || z.ID >= MaxZones {
		panic(fmt.Sprintf("protocol: zone id %d out of range [0,%d)", z.ID, MaxZones))
	}
	return Frame{byte(z.ID + ZoneOffset), z.Color.R, z.Color.G, z.Color.B}
}

// EncodeZones concatenates the zone frames in the given order.
func EncodeZones(zones []types.LedZone) []byte {
	out := make([]byte, 0, len(zones)*FrameSize)
	for _, z := range zones {
		f := EncodeZone(z)
		out = append(out, f[:]...)
	}
	return out
}

// Concat joins frames into one write.
func Concat(frames ...Frame) []byte {
	out := make([]byte, 0, len(frames)*FrameSize)
	for _, f := range frames {
		out = append(out, f[:]...)
	}
	return out
}

// Batch splits zones into consecutive groups of at most size zones.
func Batch(zones []types.LedZone, size int) [][]types.LedZone {
	if size <= 0 {
		size = BatchSize
	}
	batches := make([][]types.LedZone, 0, (len(zones)+size-1)/size)
	for start := 0; start < len(zones); start += size {
		end := min(start+size, len(zones))
		batches = append(batches, zones[start:end])
	}
	return batches
}

// Decode groups a byte stream into frames.
func Decode(stream []byte) ([]Frame, error) {
	if len(stream)%FrameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrRaggedFrame, len(stream))
	}
	frames := make([]Frame, len(stream)/FrameSize)
	for i := range frames {
		copy(frames[i][:], stream[i*FrameSize:])
	}
	return frames, nil
}

// Target returns the frame's target byte.
func (f Frame) Target() Target {
	return Target(f[0])
}

// IsZone reports whether the frame addresses a single zone.
func (f Frame) IsZone() bool {
	return f[0] >= ZoneOffset
}

// Zone interprets a zone frame. ok is false for reserved targets.
func (f Frame) Zone() (zone types.LedZone, ok bool) {
	if !f.IsZone() {
		return types.LedZone{}, false
	}
	return types.LedZone{
		ID:    int(f[0]) - ZoneOffset,
		Color: types.Color{R: f[1], G: f[2], B: f[3]},
	}, true
}

// DecodeZones decodes a stream that must contain only zone frames.
func DecodeZones(stream []byte) ([]types.LedZone, error) {
	frames, err := Decode(stream)
	if err != nil {
		return nil, err
	}
	zones := make([]types.LedZone, 0, len(frames))
	for i, f := range frames {
		z, ok := f.Zone()
		if !ok {
			return nil, fmt.Errorf("frame %d has reserved target %d", i, f[0])
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func (f Frame) String() string {
	switch f.Target() {
	case TargetMode:
		return fmt.Sprintf("mode(%s)", types.Mode(f[1]))
	case TargetBrightness:
		return fmt.Sprintf("brightness(%d)", f[1])
	case TargetAllLeds:
		return fmt.Sprintf("all(%s)", types.Color{R: f[1], G: f[2], B: f[3]})
	case TargetAudio:
		return fmt.Sprintf("audio(%d,%d)", f[1], f[2])
	}
	return fmt.Sprintf("zone(%d,%s)", int(f[0])-ZoneOffset, types.Color{R: f[1], G: f[2], B: f[3]})
}
