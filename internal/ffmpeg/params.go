package ffmpeg

// ScreenParams describes a screen grab decoded to raw BGRA frames on stdout.
type ScreenParams struct {
	// Input Configuration
	InputFormat string // x11grab, kmsgrab, v4l2, lavfi
	Device      string // :0.0, /dev/dri/card0, /dev/video0, testsrc2
	GrabSize    string // source size, e.g. 3840x2160 (empty = device default)
	Framerate   int    // frames per second (0 = 30)

	// Output Configuration, normally the monitor geometry
	Width  int
	Height int

	// Behavior Options
	Options []OptionType
}

// AudioParams describes an audio tap decoded to s16le PCM on stdout.
type AudioParams struct {
	InputFormat string // pulse, alsa, lavfi
	Device      string // default, hw:0,0, alsa_output.monitor
	SampleRate  int    // 0 = 48000
	Channels    int    // 0 = 2

	// Behavior Options
	Options []OptionType
}
