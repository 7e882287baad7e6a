package devices

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	byIDDir   = "/dev/v4l/by-id/"
	byPathDir = "/dev/v4l/by-path/"
	devDir    = "/dev/"
)

// ResolveDevicePath converts a device argument to a device node path. A bare
// integer N names /dev/videoN, absolute /dev paths are used as given,
// usb-/platform- identifiers are looked up among the stable symlinks, and any
// other argument naming an existing file is used as given.
func ResolveDevicePath(deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("empty device ID")
	}

	if n, err := strconv.Atoi(deviceID); err == nil {
		if n < 0 {
			return "", fmt.Errorf("invalid device index: %d", n)
		}
		return fmt.Sprintf("%svideo%d", devDir, n), nil
	}

	// If it's already a full path, use it directly
	if strings.HasPrefix(deviceID, devDir) {
		return deviceID, nil
	}

	// Try by-id first (for USB devices)
	if strings.HasPrefix(deviceID, "usb-") {
		devicePath := byIDDir + deviceID
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Try by-path (for platform devices and USB devices without by-id)
	if strings.HasPrefix(deviceID, "platform-") || strings.HasPrefix(deviceID, "usb-") {
		devicePath := byPathDir + deviceID
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Any other existing node, e.g. a symlink outside /dev
	if _, err := os.Stat(deviceID); err == nil {
		return deviceID, nil
	}

	return "", fmt.Errorf("no device node or stable symlink found for %q", deviceID)
}
