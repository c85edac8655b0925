package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/ambilight/internal/config"
	"github.com/smazurov/ambilight/internal/devices"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

func TestPrintPorts(t *testing.T) {
	ports := []devices.DeviceInfo{
		{Path: "/dev/ttyACM0", USB: true, VID: "2341", PID: "0043", SerialNumber: "7573", Product: "Arduino Uno"},
		{Path: "/dev/ttyS0"},
	}

	var buf bytes.Buffer
	if err := printPorts(&buf, ports, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"PATH", "/dev/ttyACM0", "2341:0043", "Arduino Uno", "/dev/ttyS0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printPorts(&buf, ports, true); err != nil {
		t.Fatal(err)
	}
	var decoded []devices.DeviceInfo
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded) != 2 || decoded[0].VID != "2341" {
		t.Errorf("decoded = %+v", decoded)
	}

	buf.Reset()
	if err := printPorts(&buf, nil, true); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON = %q", buf.String())
	}
}

func writeSettings(t *testing.T, fn func(*config.StripSettings)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strip.toml")
	if _, err := config.NewStripStore(path).Update(fn); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestValidateSettings(t *testing.T) {
	path := writeSettings(t, func(s *config.StripSettings) {
		s.Device = "/dev/ttyUSB0"
		s.Geometry.HorizontalLeds = 6
		s.Geometry.VerticalLeds = 4
	})

	var buf bytes.Buffer
	if err := validateSettings(&buf, path, true); err != nil {
		t.Fatalf("validateSettings() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{": ok", "/dev/ttyUSB0", "zones:    10", "bottom-right", "right:", "bottom:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.toml")
	data := "version = 1\n[strip.geometry]\nhorizontal_leds = 7\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := validateSettings(&buf, path, false); err == nil {
		t.Fatalf("validateSettings() accepted odd zone count:\n%s", buf.String())
	}
}

func solidImage(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderPreview(t *testing.T) {
	g := zonemap.Geometry{
		ScreenWidth:    64,
		ScreenHeight:   36,
		HorizontalLeds: 6,
		VerticalLeds:   4,
		Corner:         types.CornerBottomRight,
		Margin:         2,
		Thickness:      2,
	}

	dc, zones, err := renderPreview(g, solidImage(color.RGBA{R: 255, A: 255}, 128, 72))
	if err != nil {
		t.Fatalf("renderPreview() error: %v", err)
	}
	if len(zones) != 10 {
		t.Fatalf("zones = %d, want 10", len(zones))
	}
	for _, z := range zones {
		if z.Color != (types.Color{R: 127}) {
			t.Errorf("zone %d = %v, want gamma compressed red", z.ID, z.Color)
		}
	}

	// 64x36 scales to 960x540 inside the ring.
	bounds := dc.Image().Bounds()
	if bounds.Dx() != previewWidth+2*previewBorder || bounds.Dy() != 540+2*previewBorder {
		t.Errorf("preview size = %v", bounds)
	}

	// corner of the first right-edge cell
	r, g8, b, _ := dc.Image().At(previewWidth+previewBorder+4, previewBorder+4).RGBA()
	if r>>8 != 255 || g8>>8 != 0 || b>>8 != 0 {
		t.Errorf("ring color = %d,%d,%d, want 255,0,0", r>>8, g8>>8, b>>8)
	}
}

func TestRenderPreview_InvalidGeometry(t *testing.T) {
	g := config.DefaultStripSettings().Geometry
	g.VerticalLeds = 3
	if _, _, err := renderPreview(g, solidImage(color.White, 8, 8)); err == nil {
		t.Error("renderPreview() accepted invalid geometry")
	}
}

func TestDisplayColor(t *testing.T) {
	tests := []struct {
		in   types.Color
		want color.RGBA
	}{
		{types.Color{}, color.RGBA{A: 255}},
		{types.Color{R: 127, G: 127, B: 127}, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{types.Color{G: 32}, color.RGBA{G: 128, A: 255}},
	}
	for _, tt := range tests {
		if got := displayColor(tt.in); got != tt.want {
			t.Errorf("displayColor(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
