package led

import (
	"os"
	"strings"

	"github.com/smazurov/ambilight/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New returns a controller for the status LED. A non-empty sysfsName
// selects /sys/class/leds/<sysfsName> directly; otherwise the board is
// detected and its spare user LED is used. Hosts without one get a no-op
// controller.
func New(sysfsName string, logger logging.Logger) Controller {
	if sysfsName != "" {
		logger.Info("Using configured status LED", "led", sysfsName)
		return newSysfs(map[string]string{StatusLED: sysfsName})
	}

	boardModel := detectBoard()
	logger.Info("Detecting board for LED control", "board_model", boardModel)

	if entry, ok := boardLED(boardModel); ok {
		logger.Info("Using board status LED", "board_model", boardModel, "led", entry)
		return newSysfs(map[string]string{StatusLED: entry})
	}

	logger.Info("No LED support detected, using no-op controller", "board_model", boardModel)
	return newNoop(logger)
}

// boardLED returns the sysfs entry of the LED the board leaves free for
// applications.
func boardLED(model string) (string, bool) {
	switch {
	case strings.Contains(model, "NanoPC-T6"):
		return "usr_led", true
	case strings.Contains(model, "Orange Pi"):
		return "green_led", true
	case strings.Contains(model, "Raspberry Pi"):
		return "ACT", true
	}
	return "", false
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated
	return strings.TrimRight(string(data), "\x00")
}
