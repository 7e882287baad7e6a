//go:build !linux

package devices

import (
	"fmt"

	"github.com/smazurov/v4l2forward/internal/forward"
)

// Mock devices so the CLI and API can be exercised off Linux.
var mockDevices = []DeviceInfo{
	{
		DevicePath: "/dev/video0",
		DeviceName: "Mock USB Webcam HD",
		DeviceID:   "usb-mock-webcam-001",
		Caps:       0x84000001, // VIDEO_CAPTURE | STREAMING | DEVICE_CAPS
		Capture:    true,
	},
	{
		DevicePath: "/dev/video1",
		DeviceName: "Mock Loopback",
		DeviceID:   "platform-v4l2loopback-000",
		Caps:       0x84000002, // VIDEO_OUTPUT | STREAMING | DEVICE_CAPS
		Output:     true,
	},
}

var mockFormats = []FormatInfo{
	{PixelFormat: 0x56595559, FourCC: "YUYV", FormatName: "YUYV 4:2:2"},
	{PixelFormat: 0x47504a4d, FourCC: "MJPG", FormatName: "Motion-JPEG"},
}

type mockDetector struct{}

func newDetector() DeviceDetector {
	return mockDetector{}
}

func (mockDetector) FindDevices() ([]DeviceInfo, error) {
	return mockDevices, nil
}

func (mockDetector) GetDeviceFormats(devicePath string, _ forward.Role) ([]FormatInfo, error) {
	for _, d := range mockDevices {
		if d.DevicePath == devicePath {
			return mockFormats, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", devicePath)
}

func (mockDetector) GetDeviceResolutions(_ string, _ uint32) ([]Resolution, error) {
	return []Resolution{{Width: 640, Height: 480}, {Width: 1280, Height: 720}}, nil
}

func (mockDetector) GetDeviceFramerates(_ string, _ uint32, _, _ uint32) ([]Framerate, error) {
	return []Framerate{{Numerator: 1, Denominator: 30}}, nil
}

// OpenSource is unavailable off Linux.
func OpenSource(path string, _ OpenOptions) (CaptureDevice, error) {
	return nil, &forward.DeviceOpenError{Path: path, Role: forward.RoleSource, Err: ErrUnsupported}
}

// OpenSink is unavailable off Linux.
func OpenSink(path string, _ OpenOptions) (OutputDevice, error) {
	return nil, &forward.DeviceOpenError{Path: path, Role: forward.RoleSink, Err: ErrUnsupported}
}
