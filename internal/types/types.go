// Package types holds the value types shared by the rendering pipeline.
package types

import (
	"fmt"
	"strings"
)

// Mode selects the source the strip colors are produced from.
type Mode uint8

// Strip modes. The numeric value is what the microcontroller receives.
const (
	ModeOff           Mode = 0
	ModeManual        Mode = 1
	ModeAudioSpectrum Mode = 2
	ModeMonitorColors Mode = 3
)

// Modes lists every mode in wire order.
var Modes = []Mode{ModeOff, ModeManual, ModeAudioSpectrum, ModeMonitorColors}

var modeNames = map[Mode]string{
	ModeOff:           "off",
	ModeManual:        "manual",
	ModeAudioSpectrum: "audio",
	ModeMonitorColors: "monitor",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode accepts the names returned by Mode.String plus a few aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "0":
		return ModeOff, nil
	case "manual", "1":
		return ModeManual, nil
	case "audio", "audiospectrum", "audio_spectrum", "2":
		return ModeAudioSpectrum, nil
	case "monitor", "monitorcolors", "monitor_colors", "screen", "3":
		return ModeMonitorColors, nil
	}
	return ModeOff, fmt.Errorf("unknown mode %q", s)
}

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Black is the blackout color.
var Black = Color{}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	var c Color
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return c, fmt.Errorf("invalid color %q: want rrggbb", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// Corner is the bezel corner where the first zone of the strip sits.
type Corner uint8

// Corner orientations, in the order the settings file stores them.
const (
	CornerBottomRight Corner = 0
	CornerTopRight    Corner = 1
	CornerTopLeft     Corner = 2
	CornerBottomLeft  Corner = 3
)

// Corners lists every corner in wire order.
var Corners = []Corner{CornerBottomRight, CornerTopRight, CornerTopLeft, CornerBottomLeft}

var cornerNames = [...]string{"bottom-right", "top-right", "top-left", "bottom-left"}

func (c Corner) String() string {
	if int(c) < len(cornerNames) {
		return cornerNames[c]
	}
	return fmt.Sprintf("corner(%d)", uint8(c))
}

// Valid reports whether c is one of the four corners.
func (c Corner) Valid() bool {
	return int(c) < len(cornerNames)
}

// ParseCorner accepts "bottom-right", "bottomright", "br" and friends.
func ParseCorner(s string) (Corner, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "bottomright", "br", "0":
		return CornerBottomRight, nil
	case "topright", "tr", "1":
		return CornerTopRight, nil
	case "topleft", "tl", "2":
		return CornerTopLeft, nil
	case "bottomleft", "bl", "3":
		return CornerBottomLeft, nil
	}
	return CornerBottomRight, fmt.Errorf("unknown corner %q", s)
}

// LedZone is one addressable segment of the strip and its current color.
type LedZone struct {
	ID    int   `json:"id"`
	Color Color `json:"color"`
}

// MarshalText encodes m by name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseMode does.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText encodes c as "#rrggbb".
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts anything ParseColor does.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText encodes c by name.
func (c Corner) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown corner %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts anything ParseCorner does.
func (c *Corner) UnmarshalText(text []byte) error {
	parsed, err := ParseCorner(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
