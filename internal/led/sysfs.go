package led

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using the Linux LED class interface.
type sysfs struct {
	root string
	leds map[string]string // logical name -> /sys/class/leds entry
}

func newSysfs(leds map[string]string) *sysfs {
	return &sysfs{root: sysfsLEDPath, leds: leds}
}

// triggers maps patterns onto kernel LED triggers.
var triggers = map[string]string{
	PatternSolid:     "none",
	PatternBlink:     "timer",
	PatternHeartbeat: "heartbeat",
}

// Set writes the trigger first, then brightness. The kernel resets the
// trigger to none when brightness is written as 0.
func (s *sysfs) Set(name string, enabled bool, pattern string) error {
	entry, ok := s.leds[name]
	if !ok {
		return fmt.Errorf("LED %q not supported on this board", name)
	}

	ledPath := filepath.Join(s.root, entry)
	if _, err := os.Stat(ledPath); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", name, ledPath, err)
	}

	if pattern != "" {
		trigger, ok := triggers[pattern]
		if !ok {
			return fmt.Errorf("unknown LED pattern %q", pattern)
		}
		if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte(trigger), 0o644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
		if pattern != PatternSolid && enabled {
			return nil
		}
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	names := make([]string, 0, len(s.leds))
	for name := range s.leds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *sysfs) Patterns() []string {
	return []string{PatternSolid, PatternBlink, PatternHeartbeat}
}
