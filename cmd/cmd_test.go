package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/smazurov/v4l2forward/internal/forward"
)

type stubDetector struct {
	devices     []devices.DeviceInfo
	formats     []devices.FormatInfo
	resolutions []devices.Resolution
	framerates  []devices.Framerate
	err         error
	role        forward.Role
}

func (d *stubDetector) FindDevices() ([]devices.DeviceInfo, error) { return d.devices, d.err }

func (d *stubDetector) GetDeviceFormats(_ string, role forward.Role) ([]devices.FormatInfo, error) {
	d.role = role
	return d.formats, d.err
}

func (d *stubDetector) GetDeviceResolutions(string, uint32) ([]devices.Resolution, error) {
	return d.resolutions, nil
}

func (d *stubDetector) GetDeviceFramerates(string, uint32, uint32, uint32) ([]devices.Framerate, error) {
	return d.framerates, nil
}

func TestListDevices(t *testing.T) {
	tests := []struct {
		name     string
		detector *stubDetector
		want     []string
		wantErr  bool
	}{
		{
			name: "capture and output",
			detector: &stubDetector{devices: []devices.DeviceInfo{
				{DevicePath: "/dev/video0", DeviceName: "Webcam", DeviceID: "usb-cam-video-index0", Capture: true},
				{DevicePath: "/dev/video1", DeviceName: "Dummy video device", Output: true},
				{DevicePath: "/dev/video2", DeviceName: "M2M", Capture: true, Output: true},
			}},
			want: []string{"/dev/video0", "Webcam", "source", "id: usb-cam-video-index0", "/dev/video1", "sink", "source,sink"},
		},
		{
			name:     "none",
			detector: &stubDetector{},
			want:     []string{"No V4L2 capture or output devices found"},
		},
		{
			name:     "enumeration failure",
			detector: &stubDetector{err: errors.New("no sysfs")},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := listDevices(&buf, tt.detector)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			for _, s := range tt.want {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("Expected output to contain %q, got:\n%s", s, buf.String())
				}
			}
		})
	}
}

func TestPrintFormats(t *testing.T) {
	detector := &stubDetector{
		formats: []devices.FormatInfo{
			{PixelFormat: 0x56595559, FourCC: "YUYV", FormatName: "YUYV 4:2:2"},
			{PixelFormat: 0x47504a4d, FourCC: "MJPG", FormatName: "Motion-JPEG", Emulated: true},
		},
		resolutions: []devices.Resolution{{Width: 640, Height: 480}},
		framerates:  []devices.Framerate{{Numerator: 1, Denominator: 30}, {Numerator: 1, Denominator: 15}},
	}

	var buf bytes.Buffer
	if err := printFormats(&buf, detector, "/dev/video1", forward.RoleSink); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if detector.role != forward.RoleSink {
		t.Errorf("Expected formats queried for sink, got %q", detector.role)
	}

	out := buf.String()
	for _, s := range []string{"Supported formats:", "YUYV YUYV 4:2:2", "MJPG Motion-JPEG (emulated)", "640x480 30.00 15.00 fps"} {
		if !strings.Contains(out, s) {
			t.Errorf("Expected output to contain %q, got:\n%s", s, out)
		}
	}
}
