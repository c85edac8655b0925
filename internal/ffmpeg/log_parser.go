package ffmpeg

import "strings"

// noisy lines that ffmpeg repeats for every grabbed frame. They are demoted
// to verbose so the capture module stays readable at info.
var noisy = []string{
	"Past duration",
	"frame=",
	"size=N/A",
}

// ParseLogLevel splits a line printed with -loglevel level+... into its level
// and message. Component prefixes like "[x11grab @ 0x55d1] " are kept in the
// message; unprefixed lines are info.
func ParseLogLevel(line string) (level, msg string) {
	level = "info"
	var component string
	rest := line
	for len(rest) > 2 && rest[0] == '[' {
		end := strings.Index(rest, "] ")
		if end == -1 {
			break
		}
		tag := rest[1:end]
		if isLogLevel(tag) {
			level = tag
			rest = rest[end+2:]
			break
		}
		if component != "" {
			break
		}
		component = rest[:end+2]
		rest = rest[end+2:]
	}
	msg = component + rest

	if level == "info" {
		for _, n := range noisy {
			if strings.Contains(msg, n) {
				return "verbose", msg
			}
		}
	}
	return level, msg
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
