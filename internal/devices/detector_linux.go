//go:build linux

package devices

import (
	"log/slog"

	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
	"github.com/smazurov/v4l2forward/pkg/linuxav/v4l2"
)

type linuxDetector struct {
	logger *slog.Logger
}

func newDetector() DeviceDetector {
	return &linuxDetector{logger: logging.GetLogger("devices")}
}

// FindDevices returns all currently available V4L2 devices.
func (d *linuxDetector) FindDevices() ([]DeviceInfo, error) {
	v4l2Devices, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, len(v4l2Devices))
	for i, dev := range v4l2Devices {
		devices[i] = DeviceInfo{
			DevicePath: dev.DevicePath,
			DeviceName: dev.DeviceName,
			DeviceID:   dev.DeviceID,
			Caps:       dev.Caps,
			Capture:    dev.IsCapture(),
			Output:     dev.IsOutput(),
		}
	}

	d.logger.Debug("Enumerated V4L2 devices", "count", len(devices))
	return devices, nil
}

// GetDeviceFormats returns supported formats for a device.
func (d *linuxDetector) GetDeviceFormats(devicePath string, role forward.Role) ([]FormatInfo, error) {
	v4l2Formats, err := v4l2.GetFormats(devicePath, bufType(role))
	if err != nil {
		return nil, err
	}

	formats := make([]FormatInfo, len(v4l2Formats))
	for i, f := range v4l2Formats {
		formats[i] = FormatInfo{
			PixelFormat: f.PixelFormat,
			FourCC:      v4l2.FormatFourCC(f.PixelFormat),
			FormatName:  f.FormatName,
			Emulated:    f.Emulated,
		}
	}

	return formats, nil
}

// GetDeviceResolutions returns supported resolutions for a format.
func (d *linuxDetector) GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	v4l2Resolutions, err := v4l2.GetResolutions(devicePath, pixelFormat)
	if err != nil {
		return nil, err
	}

	resolutions := make([]Resolution, len(v4l2Resolutions))
	for i, r := range v4l2Resolutions {
		resolutions[i] = Resolution{Width: r.Width, Height: r.Height}
	}

	return resolutions, nil
}

// GetDeviceFramerates returns supported framerates for a resolution.
func (d *linuxDetector) GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	v4l2Framerates, err := v4l2.GetFramerates(devicePath, pixelFormat, width, height)
	if err != nil {
		return nil, err
	}

	framerates := make([]Framerate, len(v4l2Framerates))
	for i, fr := range v4l2Framerates {
		framerates[i] = Framerate{Numerator: fr.Numerator, Denominator: fr.Denominator}
	}

	return framerates, nil
}

func bufType(role forward.Role) v4l2.BufType {
	if role == forward.RoleSink {
		return v4l2.BufTypeVideoOutput
	}
	return v4l2.BufTypeVideoCapture
}
