package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
)

// Binary is the ffmpeg executable looked up in PATH.
var Binary = "ffmpeg"

// base returns the ffmpeg invocation with standard flags. Log lines carry a
// [level] prefix so ParseLogLevel can route them.
func base() []string {
	return []string{Binary, "-hide_banner", "-nostdin", "-loglevel", "level+warning"}
}

// BuildScreenArgs builds an ffmpeg command writing BGRA frames of
// Width*Height*4 bytes to stdout.
func BuildScreenArgs(p *ScreenParams) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", p.Width, p.Height)
	}
	if err := ValidateOptions(p.Options); err != nil {
		return nil, err
	}

	inputFormat := p.InputFormat
	if inputFormat == "" {
		inputFormat = "x11grab"
	}
	device := p.Device
	if device == "" {
		device = defaultScreenDevice(inputFormat)
	}
	framerate := p.Framerate
	if framerate <= 0 {
		framerate = 30
	}

	args := base()
	args = applyOptions(p.Options, inputFormat, args)

	var filters string
	switch inputFormat {
	case "lavfi":
		src := device
		if p.GrabSize != "" {
			src += "=size=" + p.GrabSize
		}
		src += ":rate=" + strconv.Itoa(framerate)
		args = append(args, "-f", "lavfi", "-i", src)
	case "kmsgrab":
		// frames live on the GPU and must be mapped back before scaling
		args = append(args, "-framerate", strconv.Itoa(framerate), "-f", "kmsgrab", "-device", device, "-i", "-")
		filters = "hwmap=derive_device=vaapi,hwdownload,format=bgr0,"
	default:
		args = append(args, "-f", inputFormat, "-framerate", strconv.Itoa(framerate))
		if p.GrabSize != "" {
			args = append(args, "-video_size", p.GrabSize)
		}
		args = append(args, "-i", device)
	}

	filters += fmt.Sprintf("scale=%d:%d", p.Width, p.Height)
	args = append(args,
		"-vf", filters,
		"-pix_fmt", "bgra",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args, nil
}

// BuildAudioArgs builds an ffmpeg command writing interleaved s16le PCM to
// stdout.
func BuildAudioArgs(p *AudioParams) ([]string, error) {
	if err := ValidateOptions(p.Options); err != nil {
		return nil, err
	}

	inputFormat := p.InputFormat
	if inputFormat == "" {
		inputFormat = "pulse"
	}
	device := p.Device
	if device == "" {
		device = "default"
	}
	sampleRate := p.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	channels := p.Channels
	if channels <= 0 {
		channels = 2
	}
	if channels > 2 {
		return nil, errors.New("at most 2 audio channels are supported")
	}

	args := base()
	args = applyOptions(p.Options, inputFormat, args)
	args = append(args,
		"-f", inputFormat,
		"-i", device,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	return args, nil
}

func defaultScreenDevice(inputFormat string) string {
	switch inputFormat {
	case "kmsgrab":
		return "/dev/dri/card0"
	case "v4l2":
		return "/dev/video0"
	case "lavfi":
		return "testsrc2"
	default:
		return ":0.0"
	}
}
