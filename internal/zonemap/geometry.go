package zonemap

import (
	"errors"
	"fmt"

	"github.com/smazurov/ambilight/internal/protocol"
	"github.com/smazurov/ambilight/internal/types"
)

// BytesPerPixel is the stride of one pixel in a captured frame (BGRA).
const BytesPerPixel = 4

// Defaults for the border bands, in pixels.
const (
	DefaultMargin    = 40
	DefaultThickness = 20
)

var (
	// ErrInvalidGeometry wraps every precondition failure reported by Validate.
	ErrInvalidGeometry = errors.New("invalid strip geometry")
	// ErrShortFrame is returned by ReduceFrame for buffers smaller than the
	// map's screen.
	ErrShortFrame = errors.New("frame too small for geometry")
)

// Geometry describes the monitor and how the strip is wrapped around it.
type Geometry struct {
	ScreenWidth    int          `json:"screen_width" toml:"screen_width"`
	ScreenHeight   int          `json:"screen_height" toml:"screen_height"`
	HorizontalLeds int          `json:"horizontal_leds" toml:"horizontal_leds"`
	VerticalLeds   int          `json:"vertical_leds" toml:"vertical_leds"`
	Corner         types.Corner `json:"corner" toml:"corner"`
	Margin         int          `json:"margin" toml:"margin"`
	Thickness      int          `json:"thickness" toml:"thickness"`
}

// ZoneCount is the total number of zones on the strip.
func (g Geometry) ZoneCount() int {
	return g.HorizontalLeds + g.VerticalLeds
}

// FrameSize is the number of bytes a frame for this geometry must hold.
func (g Geometry) FrameSize() int {
	return g.ScreenWidth * g.ScreenHeight * BytesPerPixel
}

// Validate reports why g cannot be mapped. Callers are expected to run it
// before Build; Build treats the same conditions as programming errors.
func Validate(g Geometry) error {
	n := g.ZoneCount()
	switch {
	case g.HorizontalLeds < 2 || g.VerticalLeds < 2:
		return fmt.Errorf("%w: need at least 2 horizontal and 2 vertical zones, got %d and %d",
			ErrInvalidGeometry, g.HorizontalLeds, g.VerticalLeds)
	case g.HorizontalLeds%2 != 0 || g.VerticalLeds%2 != 0:
		// each count is split evenly between two opposite edges
		return fmt.Errorf("%w: horizontal (%d) and vertical (%d) zone counts must be even",
			ErrInvalidGeometry, g.HorizontalLeds, g.VerticalLeds)
	case n >= 255:
		return fmt.Errorf("%w: %d zones, must be below 255", ErrInvalidGeometry, n)
	case n > protocol.MaxZones:
		return fmt.Errorf("%w: %d zones, the protocol addresses at most %d",
			ErrInvalidGeometry, n, protocol.MaxZones)
	case g.ScreenWidth <= 0 || g.ScreenHeight <= 0:
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalidGeometry, g.ScreenWidth, g.ScreenHeight)
	case g.Margin < 0 || g.Thickness <= 0:
		return fmt.Errorf("%w: margin %d, thickness %d", ErrInvalidGeometry, g.Margin, g.Thickness)
	case !g.Corner.Valid():
		return fmt.Errorf("%w: corner %d", ErrInvalidGeometry, g.Corner)
	}
	return nil
}

// checkBuildable is the precondition Build enforces by panicking. It is
// looser than Validate: odd per-edge counts whose sum is even are accepted
// and the protocol bound is left to the caller.
func checkBuildable(g Geometry) {
	n := g.ZoneCount()
	if n%2 != 0 || n >= 255 {
		panic(fmt.Sprintf("zonemap: zone count %d must be even and below 255", n))
	}
	if g.HorizontalLeds < 2 || g.VerticalLeds < 2 {
		panic(fmt.Sprintf("zonemap: %d horizontal and %d vertical zones leave an edge without bins",
			g.HorizontalLeds, g.VerticalLeds))
	}
	if g.ScreenWidth <= 0 || g.ScreenHeight <= 0 || !g.Corner.Valid() {
		panic(fmt.Sprintf("zonemap: unusable geometry %+v", g))
	}
}
