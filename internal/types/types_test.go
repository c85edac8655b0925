package types

import (
	"encoding/json"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"off", ModeOff, false},
		{"Manual", ModeManual, false},
		{"audio", ModeAudioSpectrum, false},
		{"monitor_colors", ModeMonitorColors, false},
		{"3", ModeMonitorColors, false},
		{"disco", ModeOff, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestModeWireValues(t *testing.T) {
	if ModeOff != 0 || ModeManual != 1 || ModeAudioSpectrum != 2 || ModeMonitorColors != 3 {
		t.Fatal("mode ordinals changed")
	}
	if Mode(7).Valid() {
		t.Error("Mode(7).Valid() = true")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff8000", Color{R: 255, G: 128}, false},
		{"00ff7f", Color{G: 255, B: 127}, false},
		{" #000000 ", Black, false},
		{"#fff", Color{}, true},
		{"#gg0000", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCorner(t *testing.T) {
	tests := []struct {
		in   string
		want Corner
	}{
		{"bottom-right", CornerBottomRight},
		{"TopRight", CornerTopRight},
		{"top_left", CornerTopLeft},
		{"bl", CornerBottomLeft},
	}
	for _, tt := range tests {
		got, err := ParseCorner(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseCorner(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseCorner("middle"); err == nil {
		t.Error("ParseCorner(middle) succeeded")
	}
}

func TestTextEncoding(t *testing.T) {
	in := struct {
		Mode   Mode   `json:"mode"`
		Color  Color  `json:"color"`
		Corner Corner `json:"corner"`
	}{ModeAudioSpectrum, Color{R: 1, G: 2, B: 3}, CornerTopLeft}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"mode":"audio","color":"#010203","corner":"top-left"}`; string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	out := in
	out.Mode, out.Color, out.Corner = ModeOff, Black, CornerBottomRight
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("Unmarshal = %+v, want %+v", out, in)
	}

	if _, err := json.Marshal(Mode(9)); err == nil {
		t.Error("marshalling an unknown mode succeeded")
	}
}
