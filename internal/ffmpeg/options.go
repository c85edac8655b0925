package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed FFmpeg option.
type OptionType string

// FFmpeg option constants
const (
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
	OptionDrawMouse          OptionType = "draw_mouse"
)

// ExclusiveGroup represents a group of mutually exclusive options.
type ExclusiveGroup string

// Exclusive groups.
const (
	GroupThreadQueue ExclusiveGroup = "thread_queue"
)

// Option represents an available FFmpeg input flag with metadata.
type Option struct {
	Key            OptionType     `json:"key"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Args           []string       `json:"args"`
	AppDefault     bool           `json:"app_default"`
	ExclusiveGroup ExclusiveGroup `json:"exclusive_group,omitempty"`
}

// AllOptions lists the input flags that can be enabled in the config.
var AllOptions = []Option{
	{
		Key:         OptionWallclockTimestamp,
		Name:        "Wallclock Timestamps",
		Description: "Use wallclock as timestamps",
		Args:        []string{"-use_wallclock_as_timestamps", "1"},
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use 1024 thread queue size",
		Args:           []string{"-thread_queue_size", "1024"},
		AppDefault:     true,
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use 4096 thread queue size",
		Args:           []string{"-thread_queue_size", "4096"},
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Disable input buffering",
		Args:        []string{"-fflags", "nobuffer", "-flags", "low_delay"},
		AppDefault:  true,
	},
	{
		Key:         OptionDrawMouse,
		Name:        "Draw Mouse",
		Description: "Include the pointer in x11grab captures",
		Args:        []string{"-draw_mouse", "1"},
	},
}

// GetOptionByKey returns an option by its key.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled by default.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ValidateOptions rejects unknown keys and exclusive group violations.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			return fmt.Errorf("unknown ffmpeg option %q", key)
		}
		if option.ExclusiveGroup != "" {
			groups[option.ExclusiveGroup] = append(groups[option.ExclusiveGroup], string(key))
		}
	}

	for group, keys := range groups {
		if len(keys) > 1 {
			return fmt.Errorf("options %s are mutually exclusive (group %s)", strings.Join(keys, ", "), group)
		}
	}
	return nil
}

// applyOptions appends the input flags for the selected options.
// x11grab-only flags are skipped for other inputs.
func applyOptions(options []OptionType, inputFormat string, args []string) []string {
	for _, key := range options {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		if key == OptionDrawMouse && inputFormat != "x11grab" {
			continue
		}
		args = append(args, option.Args...)
	}
	return args
}
