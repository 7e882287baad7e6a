// Package devices finds V4L2 nodes and opens them as forwarding endpoints.
package devices

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/v4l2forward/internal/forward"
)

// ErrUnsupported is returned where V4L2 is not available.
var ErrUnsupported = errors.New("V4L2 is only available on Linux")

// DeviceInfo represents information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	DeviceID   string `json:"device_id"`
	Caps       uint32 `json:"caps"`
	Capture    bool   `json:"capture"`
	Output     bool   `json:"output"`
}

// Roles lists the roles the device can take in a run.
func (d DeviceInfo) Roles() []forward.Role {
	var roles []forward.Role
	if d.Capture {
		roles = append(roles, forward.RoleSource)
	}
	if d.Output {
		roles = append(roles, forward.RoleSink)
	}
	return roles
}

// FormatInfo represents information about a video format.
type FormatInfo struct {
	PixelFormat uint32 `json:"pixel_format"`
	FourCC      string `json:"fourcc"`
	FormatName  string `json:"format_name"`
	Emulated    bool   `json:"emulated"`
}

// Resolution represents a video resolution.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Framerate represents a video frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// DeviceDetector provides platform-specific device enumeration.
type DeviceDetector interface {
	// FindDevices returns all currently available capture and output nodes.
	FindDevices() ([]DeviceInfo, error)

	// GetDeviceFormats returns the formats a device supports in the given role.
	GetDeviceFormats(devicePath string, role forward.Role) ([]FormatInfo, error)

	// GetDeviceResolutions returns supported resolutions for a format.
	GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)

	// GetDeviceFramerates returns supported framerates for a resolution.
	GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error)
}

// NewDetector creates a platform-specific device detector.
func NewDetector() DeviceDetector {
	return newDetector()
}

// Description is what a node reports about itself before streaming.
type Description struct {
	Path      string
	Role      forward.Role
	Driver    string
	Card      string
	BusInfo   string
	Version   string
	Caps      []string
	Format    forward.Format
	Framerate Framerate
	Buffers   uint32
}

// LogValue groups the description for structured logging.
func (d Description) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", d.Path),
		slog.String("role", string(d.Role)),
		slog.String("driver", d.Driver),
		slog.String("card", d.Card),
		slog.String("bus", d.BusInfo),
		slog.String("version", d.Version),
		slog.Any("caps", d.Caps),
		slog.String("format", d.Format.String()),
		slog.Uint64("bytes_per_line", uint64(d.Format.BytesPerLine)),
		slog.Uint64("size_image", uint64(d.Format.SizeImage)),
		slog.String("frame_interval", fmt.Sprintf("%d/%d", d.Framerate.Numerator, d.Framerate.Denominator)),
	)
}

// OpenOptions tunes how a node is opened for streaming.
type OpenOptions struct {
	// TimeoutMs bounds each wait for a buffer. Zero blocks indefinitely.
	TimeoutMs int
	Logger    *slog.Logger
}

// CaptureDevice is an open capture node.
type CaptureDevice interface {
	forward.Source
	Describe() (Description, error)
	Close() error
}

// OutputDevice is an open output node.
type OutputDevice interface {
	forward.Sink
	Describe() (Description, error)
	Close() error
}
