//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover capture and output nodes:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s (capture=%t output=%t)\n", dev.DevicePath, dev.DeviceName, dev.IsCapture(), dev.IsOutput())
//	}
//
// # Formats
//
// An open Device reads and writes the format of one of its queues. Drivers
// may adjust a requested format, so SetFormat returns what was committed:
//
//	dev, _ := v4l2.OpenDevice("/dev/video1")
//	got, _ := dev.SetFormat(v4l2.BufTypeVideoOutput, want)
//	if got.Width != want.Width { ... }
//
// # Streaming
//
// MmapStream maps a pool of driver buffers. Capture streams hand out filled
// frames with Next; output streams accept frame data with Write:
//
//	in, _ := v4l2.NewMmapStream(capture, v4l2.BufTypeVideoCapture, 4)
//	out, _ := v4l2.NewMmapStream(output, v4l2.BufTypeVideoOutput, 4)
//	frame, _ := in.Next()
//	_ = out.Write(frame.Data, frame.Timestamp)
//
// A Frame aliases mapped memory and is only valid until the next call on
// its stream.
package v4l2
