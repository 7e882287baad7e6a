//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Sizes offered when a driver reports a stepwise or continuous frame size
// range instead of a list.
var standardSizes = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1280, 1024},
	{1920, 1080},
	{1920, 1200},
	{2560, 1440},
	{3840, 2160},
	{4096, 2160},
}

// Rates offered for interval ranges, in frames per second.
var standardRates = []uint32{60, 50, 30, 25, 20, 15, 10, 5}

// enumerate calls query with index 0, 1, ... on a non-blocking descriptor of
// devicePath until the driver answers EINVAL or query reports done.
func enumerate(devicePath string, query func(fd int, index uint32) (done bool, err error)) error {
	fd, err := open(devicePath)
	if err != nil {
		return fmt.Errorf("open %s for enumeration: %w", devicePath, err)
	}
	defer close(fd)

	for index := uint32(0); ; index++ {
		done, err := query(fd, index)
		switch {
		case errors.Is(err, syscall.EINVAL):
			return nil
		case err != nil:
			return err
		case done:
			return nil
		}
	}
}

// GetFormats lists the pixel formats of the typ queue (VIDIOC_ENUM_FMT).
func GetFormats(devicePath string, typ BufType) ([]FormatInfo, error) {
	var formats []FormatInfo
	err := enumerate(devicePath, func(fd int, index uint32) (bool, error) {
		desc := v4l2Fmtdesc{index: index, typ: uint32(typ)}
		if err := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			return false, fmt.Errorf("VIDIOC_ENUM_FMT(%s, %d) on %s: %w", typ, index, devicePath, err)
		}
		formats = append(formats, FormatInfo{
			PixelFormat: desc.pixelformat,
			FormatName:  cstr(desc.description[:]),
			Emulated:    desc.flags&v4l2FmtFlagEmulated != 0,
		})
		return false, nil
	})
	return formats, err
}

// GetResolutions lists the frame sizes of pixelFormat (VIDIOC_ENUM_FRAMESIZES).
// A range is reported as the standard sizes that fall on it. Drivers without
// size enumeration yield an empty list.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	resolutions := []Resolution{}
	err := enumerate(devicePath, func(fd int, index uint32) (bool, error) {
		size := v4l2Frmsizeenum{index: index, pixelFormat: pixelFormat}
		if err := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&size)); err != nil {
			if errors.Is(err, syscall.ENOTTY) {
				return true, nil
			}
			return false, fmt.Errorf("VIDIOC_ENUM_FRAMESIZES(%s, %d) on %s: %w", FormatFourCC(pixelFormat), index, devicePath, err)
		}

		if size.typ == v4l2FrmsizeTypeDiscrete {
			resolutions = append(resolutions, Resolution{Width: size.discrete.width, Height: size.discrete.height})
			return false, nil
		}
		// The stepwise range shares the union with the discrete size and is
		// the only entry.
		step := *(*v4l2FrmsizeStepwise)(unsafe.Pointer(&size.discrete))
		resolutions = append(resolutions, sizesInRange(step)...)
		return true, nil
	})
	return resolutions, err
}

// GetFramerates lists the frame intervals of pixelFormat at width x height
// (VIDIOC_ENUM_FRAMEINTERVALS). A range is reported as the standard rates it
// covers.
func GetFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate
	err := enumerate(devicePath, func(fd int, index uint32) (bool, error) {
		ival := v4l2Frmivalenum{index: index, pixelFormat: pixelFormat, width: width, height: height}
		if err := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&ival)); err != nil {
			return false, fmt.Errorf("VIDIOC_ENUM_FRAMEINTERVALS(%s %dx%d, %d) on %s: %w",
				FormatFourCC(pixelFormat), width, height, index, devicePath, err)
		}

		if ival.typ == v4l2FrmivalTypeDiscrete {
			framerates = append(framerates, Framerate{Numerator: ival.discrete.numerator, Denominator: ival.discrete.denominator})
			return false, nil
		}
		// min and max interval follow the discrete slot in the union
		bounds := (*[2]v4l2Fract)(unsafe.Pointer(&ival.discrete))
		framerates = append(framerates, ratesInRange(bounds[0], bounds[1])...)
		return true, nil
	})
	return framerates, err
}

// sizesInRange keeps the standard sizes that lie within r and on its step grid.
func sizesInRange(r v4l2FrmsizeStepwise) []Resolution {
	onGrid := func(v, lo, hi, step uint32) bool {
		if v < lo || v > hi {
			return false
		}
		return step <= 1 || (v-lo)%step == 0
	}

	var out []Resolution
	for _, s := range standardSizes {
		if onGrid(s.Width, r.minWidth, r.maxWidth, r.stepWidth) &&
			onGrid(s.Height, r.minHeight, r.maxHeight, r.stepHeight) {
			out = append(out, s)
		}
	}
	return out
}

// ratesInRange keeps the standard rates whose interval lies between the
// shortest and longest interval. A zero bound leaves that side open.
func ratesInRange(shortest, longest v4l2Fract) []Framerate {
	var out []Framerate
	for _, fps := range standardRates {
		// 1/fps >= num/den  <=>  den >= fps*num
		if shortest.denominator != 0 && uint64(shortest.denominator) < uint64(fps)*uint64(shortest.numerator) {
			continue
		}
		if longest.denominator != 0 && uint64(longest.denominator) > uint64(fps)*uint64(longest.numerator) {
			continue
		}
		out = append(out, Framerate{Numerator: 1, Denominator: fps})
	}
	return out
}

// FormatFourCC spells a pixel format as its four character code.
func FormatFourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}
