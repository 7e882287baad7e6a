//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

// FindDevices finds all V4L2 video capture and output devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		cap, err := queryCapability(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		caps := cap.Effective()
		if caps&(v4l2CapVideoCapture|v4l2CapVideoOutput) == 0 {
			continue
		}

		// Get device index from sysfs
		indexPath := filepath.Join("/sys/class/video4linux", entry.Name(), "index")
		indexValue := readSysfsInt(indexPath)

		// Find stable ID from /dev/v4l/by-id/
		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			if strings.HasPrefix(cap.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", cap.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", cap.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: cap.Card,
			DeviceID:   stableID,
			Caps:       caps,
		})
	}

	return devices, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// queryCapability opens devicePath briefly and runs VIDIOC_QUERYCAP.
func queryCapability(devicePath string) (Capability, error) {
	fd, err := open(devicePath)
	if err != nil {
		return Capability{}, err
	}
	defer close(fd)
	return querycap(fd)
}

func querycap(fd int) (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}, nil
}

// Device is an open V4L2 node used for format control and streaming.
type Device struct {
	path string
	fd   int
	cap  Capability
}

// OpenDevice opens path in blocking mode and queries its capabilities.
func OpenDevice(path string) (*Device, error) {
	fd, err := openBlocking(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	cap, err := querycap(fd)
	if err != nil {
		close(fd)
		return nil, fmt.Errorf("failed to query capabilities of %s: %w", path, err)
	}

	return &Device{path: path, fd: fd, cap: cap}, nil
}

// Path returns the node the device was opened from.
func (d *Device) Path() string { return d.path }

// Capability returns the capabilities reported when the device was opened.
func (d *Device) Capability() Capability { return d.cap }

// Format returns the active format of the given queue (VIDIOC_G_FMT).
func (d *Device) Format(typ BufType) (PixFormat, error) {
	raw := v4l2Format{typ: uint32(typ)}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&raw)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT(%s) on %s: %w", typ, d.path, err)
	}
	return pixFormatFromRaw(&raw.pix), nil
}

// SetFormat requests f on the given queue (VIDIOC_S_FMT) and returns the
// format the driver committed to, which may differ from the request.
func (d *Device) SetFormat(typ BufType, f PixFormat) (PixFormat, error) {
	raw := v4l2Format{typ: uint32(typ)}
	raw.pix = v4l2PixFormat{
		width:        f.Width,
		height:       f.Height,
		pixelformat:  f.PixelFormat,
		field:        f.Field,
		bytesperline: f.BytesPerLine,
		sizeimage:    f.SizeImage,
		colorspace:   f.Colorspace,
	}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&raw)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_S_FMT(%s) on %s: %w", typ, d.path, err)
	}
	return pixFormatFromRaw(&raw.pix), nil
}

// Params returns the streaming parameters of the given queue (VIDIOC_G_PARM).
func (d *Device) Params(typ BufType) (StreamParams, error) {
	raw := v4l2Streamparm{typ: uint32(typ)}
	if err := ioctl(d.fd, vidiocGParm, unsafe.Pointer(&raw)); err != nil {
		return StreamParams{}, fmt.Errorf("VIDIOC_G_PARM(%s) on %s: %w", typ, d.path, err)
	}
	return StreamParams{
		Capability: raw.parm.capability,
		Mode:       raw.parm.mode,
		TimePerFrame: Framerate{
			Numerator:   raw.parm.timeperframe.numerator,
			Denominator: raw.parm.timeperframe.denominator,
		},
		ExtendedMode: raw.parm.extendedmode,
		Buffers:      raw.parm.buffers,
	}, nil
}

// Close releases the file descriptor. Streams must be closed first.
func (d *Device) Close() error {
	return close(d.fd)
}

func pixFormatFromRaw(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}
