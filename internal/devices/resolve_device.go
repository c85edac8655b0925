package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// serialLinkDirs holds the udev symlink directories searched for stable names.
var serialLinkDirs = []string{"/dev/serial/by-id", "/dev/serial/by-path"}

// ResolveDevicePath converts a stable device id to a port path. Paths under
// /dev and Windows COM names are returned unchanged.
func ResolveDevicePath(deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("empty device id")
	}

	if strings.HasPrefix(deviceID, "/dev/") || strings.HasPrefix(strings.ToUpper(deviceID), "COM") {
		return deviceID, nil
	}

	for _, dir := range serialLinkDirs {
		devicePath := filepath.Join(dir, deviceID)
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}
