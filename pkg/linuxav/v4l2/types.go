//go:build linux

package v4l2

import (
	"fmt"
	"strings"
	"time"
)

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// IsCapture reports whether the device can capture video.
func (d DeviceInfo) IsCapture() bool { return d.Caps&v4l2CapVideoCapture != 0 }

// IsOutput reports whether the device can output video.
func (d DeviceInfo) IsOutput() bool { return d.Caps&v4l2CapVideoOutput != 0 }

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// BufType selects the queue a format or stream operation addresses.
type BufType uint32

// Buffer types.
const (
	BufTypeVideoCapture BufType = v4l2BufTypeVideoCapture
	BufTypeVideoOutput  BufType = v4l2BufTypeVideoOutput
)

func (t BufType) String() string {
	switch t {
	case BufTypeVideoCapture:
		return "capture"
	case BufTypeVideoOutput:
		return "output"
	default:
		return fmt.Sprintf("buftype(%d)", uint32(t))
	}
}

// Capability is the decoded result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of this particular node.
func (c Capability) Effective() uint32 {
	if c.Capabilities&v4l2CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// IsCapture reports whether the node supports single-planar video capture.
func (c Capability) IsCapture() bool { return c.Effective()&v4l2CapVideoCapture != 0 }

// IsOutput reports whether the node supports single-planar video output.
func (c Capability) IsOutput() bool { return c.Effective()&v4l2CapVideoOutput != 0 }

// CanStream reports whether the node supports the streaming I/O method.
func (c Capability) CanStream() bool { return c.Effective()&v4l2CapStreaming != 0 }

func (c Capability) String() string {
	var flags []string
	if c.IsCapture() {
		flags = append(flags, "VIDEO_CAPTURE")
	}
	if c.IsOutput() {
		flags = append(flags, "VIDEO_OUTPUT")
	}
	if c.CanStream() {
		flags = append(flags, "STREAMING")
	}
	if c.Effective()&v4l2CapReadWrite != 0 {
		flags = append(flags, "READWRITE")
	}
	return fmt.Sprintf("Driver      : %s\nCard        : %s\nBus         : %s\nVersion     : %d.%d.%d\nCapabilities: %s",
		c.Driver, c.Card, c.BusInfo,
		(c.Version>>16)&0xff, (c.Version>>8)&0xff, c.Version&0xff,
		strings.Join(flags, ", "))
}

// PixFormat is the single-planar image format of a queue.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

func (f PixFormat) String() string {
	return fmt.Sprintf("Width       : %d\nHeight      : %d\nFourCC      : %s\nField       : %d\nStride      : %d\nSize        : %d\nColorspace  : %d",
		f.Width, f.Height, FormatFourCC(f.PixelFormat), f.Field, f.BytesPerLine, f.SizeImage, f.Colorspace)
}

// StreamParams is the decoded result of VIDIOC_G_PARM.
type StreamParams struct {
	Capability   uint32
	Mode         uint32
	TimePerFrame Framerate
	ExtendedMode uint32
	Buffers      uint32
}

func (p StreamParams) String() string {
	return fmt.Sprintf("Capabilities: %#x\nMode        : %#x\nFrame time  : %d/%d (%.2f fps)\nBuffers     : %d",
		p.Capability, p.Mode, p.TimePerFrame.Numerator, p.TimePerFrame.Denominator,
		p.TimePerFrame.FPS(), p.Buffers)
}

// Frame is a dequeued buffer. Data aliases the stream's mapped memory and is
// only valid until the next call on the stream that returned it.
type Frame struct {
	Index     int
	Data      []byte
	Sequence  uint32
	Timestamp time.Duration
	Flags     uint32
}

// Corrupted reports whether the driver flagged the frame data as unreliable.
func (f Frame) Corrupted() bool { return f.Flags&v4l2BufFlagError != 0 }

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapVideoOutput  = 0x00000002
	v4l2CapReadWrite    = 0x01000000
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

// Common pixel formats.
const (
	PixFmtYUYV  = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	PixFmtMJPEG = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	PixFmtH264  = 'H' | '2'<<8 | '6'<<16 | '4'<<24
	PixFmtHEVC  = 'H' | 'E'<<8 | 'V'<<16 | 'C'<<24
	PixFmtNV12  = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

// Buffer types.
const (
	v4l2BufTypeVideoCapture = 1
	v4l2BufTypeVideoOutput  = 2
)

// Memory and field constants.
const (
	v4l2MemoryMmap = 1
	v4l2FieldNone  = 1
)

// Buffer flags.
const (
	v4l2BufFlagError = 0x00000040
)
