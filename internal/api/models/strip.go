package models

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// ModeName is the API spelling of a strip mode.
type ModeName string

// Schema lists the mode names as an enum.
func (ModeName) Schema(r huma.Registry) *huma.Schema {
	values := make([]any, 0, len(types.Modes))
	for _, m := range types.Modes {
		values = append(values, m.String())
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        values,
		Description: "Strip mode",
	}
}

// CornerName is the API spelling of a corner orientation.
type CornerName string

// Schema lists the corner names as an enum.
func (CornerName) Schema(r huma.Registry) *huma.Schema {
	values := make([]any, 0, len(types.Corners))
	for _, c := range types.Corners {
		values = append(values, c.String())
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        values,
		Description: "Bezel corner where the first zone sits",
	}
}

// Geometry models
type GeometryData struct {
	ScreenWidth    int        `json:"screen_width" example:"1920" minimum:"1" doc:"Captured screen width in pixels"`
	ScreenHeight   int        `json:"screen_height" example:"1080" minimum:"1" doc:"Captured screen height in pixels"`
	HorizontalLeds int        `json:"horizontal_leds" example:"32" minimum:"2" doc:"Zones along the top and bottom edges together"`
	VerticalLeds   int        `json:"vertical_leds" example:"18" minimum:"2" doc:"Zones along the left and right edges together"`
	Corner         CornerName `json:"corner" example:"bottom-right" doc:"Corner where the strip starts"`
	Margin         int        `json:"margin" example:"40" minimum:"0" doc:"Inset of the sampled bands from the screen edge"`
	Thickness      int        `json:"thickness" example:"20" minimum:"1" doc:"Depth of the sampled bands"`
}

// GeometryFromDomain converts a zone map geometry for the API.
func GeometryFromDomain(g zonemap.Geometry) GeometryData {
	return GeometryData{
		ScreenWidth:    g.ScreenWidth,
		ScreenHeight:   g.ScreenHeight,
		HorizontalLeds: g.HorizontalLeds,
		VerticalLeds:   g.VerticalLeds,
		Corner:         CornerName(g.Corner.String()),
		Margin:         g.Margin,
		Thickness:      g.Thickness,
	}
}

// ToDomain converts the request body into a zone map geometry.
func (g GeometryData) ToDomain() (zonemap.Geometry, error) {
	corner, err := types.ParseCorner(string(g.Corner))
	if err != nil {
		return zonemap.Geometry{}, err
	}
	return zonemap.Geometry{
		ScreenWidth:    g.ScreenWidth,
		ScreenHeight:   g.ScreenHeight,
		HorizontalLeds: g.HorizontalLeds,
		VerticalLeds:   g.VerticalLeds,
		Corner:         corner,
		Margin:         g.Margin,
		Thickness:      g.Thickness,
	}, nil
}

type GeometryRequest struct {
	Body GeometryData
}

type GeometryResponse struct {
	Body GeometryData
}

// Strip status models
type StripStatusData struct {
	Mode            ModeName     `json:"mode" example:"monitor" doc:"Active mode"`
	Color           string       `json:"color" example:"#ff8800" doc:"Manual color"`
	Brightness      uint8        `json:"brightness" example:"255" doc:"Manual brightness"`
	Device          string       `json:"device" example:"/dev/ttyUSB0" doc:"Configured serial device"`
	Connected       bool         `json:"connected" example:"true" doc:"Whether the serial link is up"`
	Running         bool         `json:"running" example:"true" doc:"Whether the render loop is running"`
	Paused          bool         `json:"paused" example:"false" doc:"Whether the strip was paused through the API"`
	RetryPending    bool         `json:"retry_pending" example:"false" doc:"Whether a restart after a fault is scheduled"`
	Zones           int          `json:"zones" example:"50" doc:"Zones in the active map"`
	Geometry        GeometryData `json:"geometry" doc:"Active geometry"`
	FramesSent      uint64       `json:"frames_sent" example:"1200" doc:"Protocol frames written since start"`
	Faults          uint64       `json:"faults" example:"0" doc:"Render loop faults since start"`
	CaptureTimeouts uint64       `json:"capture_timeouts" example:"3" doc:"Skipped screen captures"`
	Helpers         []HelperData `json:"helpers" doc:"ffmpeg helper processes (screen grabber, audio tap)"`
}

type HelperData struct {
	ID        string `json:"id" example:"screen" doc:"Helper process id"`
	State     string `json:"state" example:"running" doc:"Process state"`
	Crashes   uint64 `json:"crashes" example:"0" doc:"Unrequested exits since start"`
	LastError string `json:"last_error,omitempty" doc:"Exit error of the last crash"`
}

type StripStatusResponse struct {
	Body StripStatusData
}

// Setter request models
type ModeRequest struct {
	Body struct {
		Mode ModeName `json:"mode" example:"monitor" doc:"Mode to switch to"`
	}
}

type ManualRequest struct {
	Body struct {
		Color      *string `json:"color,omitempty" example:"#ff8800" pattern:"^#?[0-9a-fA-F]{6}$" doc:"Color as rrggbb"`
		Brightness *int    `json:"brightness,omitempty" example:"200" minimum:"0" maximum:"255" doc:"Brightness 0-255"`
	}
}

type DeviceRequest struct {
	Body struct {
		Device string `json:"device" example:"/dev/ttyUSB0" doc:"Serial device path or /dev/serial/by-id name; empty disconnects"`
	}
}

// ParseMode converts an API mode name.
func ParseMode(name ModeName) (types.Mode, error) {
	m, err := types.ParseMode(string(name))
	if err != nil {
		return 0, fmt.Errorf("mode: %w", err)
	}
	return m, nil
}
