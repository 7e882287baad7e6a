package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/v4l2forward/internal/api/models"
	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/smazurov/v4l2forward/internal/events"
	"github.com/smazurov/v4l2forward/internal/forward"
)

type staticStatus forward.Status

func (s staticStatus) Status() forward.Status { return forward.Status(s) }

type stubDetector struct {
	devices []devices.DeviceInfo
	err     error
}

func (d *stubDetector) FindDevices() ([]devices.DeviceInfo, error) { return d.devices, d.err }

func (d *stubDetector) GetDeviceFormats(string, forward.Role) ([]devices.FormatInfo, error) {
	return nil, nil
}

func (d *stubDetector) GetDeviceResolutions(string, uint32) ([]devices.Resolution, error) {
	return nil, nil
}

func (d *stubDetector) GetDeviceFramerates(string, uint32, uint32, uint32) ([]devices.Framerate, error) {
	return nil, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func get(t *testing.T, s *Server, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Basic "+auth)
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	yuyv := uint32('Y') | uint32('U')<<8 | uint32('Y')<<16 | uint32('V')<<24

	tests := []struct {
		name   string
		status events.StatusSource
		want   models.StatusData
	}{
		{
			name:   "no forwarder",
			status: nil,
			want:   models.StatusData{State: "idle"},
		},
		{
			name: "streaming",
			status: staticStatus{
				State:    forward.StateStreaming,
				Source:   "/dev/video0",
				Sink:     "/dev/video1",
				Format:   forward.Format{Width: 640, Height: 480, FourCC: yuyv, BytesPerLine: 1280, SizeImage: 614400},
				Frames:   2,
				Bytes:    1228800,
				LastMBps: 500,
				MeanMBps: 550,
			},
			want: models.StatusData{
				State:    "streaming",
				Source:   "/dev/video0",
				Sink:     "/dev/video1",
				Format:   &models.FormatData{Width: 640, Height: 480, FourCC: "YUYV", BytesPerLine: 1280, SizeImage: 614400},
				Frames:   2,
				Bytes:    1228800,
				LastMBps: 500,
				MeanMBps: 550,
			},
		},
		{
			name: "aborted",
			status: staticStatus{
				State: forward.StateAborted,
				Err:   errors.New("VIDIOC_DQBUF: no such device"),
			},
			want: models.StatusData{State: "aborted", Error: "VIDIOC_DQBUF: no such device"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&Options{Status: tt.status})
			rec := get(t, s, "/api/status", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}

			var got models.StatusData
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if got.State != tt.want.State || got.Source != tt.want.Source || got.Sink != tt.want.Sink {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if got.Frames != tt.want.Frames || got.Bytes != tt.want.Bytes {
				t.Errorf("Expected counters %d/%d, got %d/%d", tt.want.Frames, tt.want.Bytes, got.Frames, got.Bytes)
			}
			if got.LastMBps != tt.want.LastMBps || got.MeanMBps != tt.want.MeanMBps {
				t.Errorf("Expected throughput %v/%v, got %v/%v", tt.want.LastMBps, tt.want.MeanMBps, got.LastMBps, got.MeanMBps)
			}
			if got.Error != tt.want.Error {
				t.Errorf("Expected error %q, got %q", tt.want.Error, got.Error)
			}
			switch {
			case tt.want.Format == nil && got.Format != nil:
				t.Errorf("Expected no format, got %+v", got.Format)
			case tt.want.Format != nil && (got.Format == nil || *got.Format != *tt.want.Format):
				t.Errorf("Expected format %+v, got %+v", tt.want.Format, got.Format)
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Status:       staticStatus{State: forward.StateDone},
	})

	tests := []struct {
		name string
		path string
		auth string
		want int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"version is public", "/api/version", "", http.StatusOK},
		{"status needs credentials", "/api/status", "", http.StatusUnauthorized},
		{"wrong password", "/api/status", basicAuth("admin", "nope"), http.StatusUnauthorized},
		{"malformed credentials", "/api/status", "!!!", http.StatusUnauthorized},
		{"missing separator", "/api/status", base64.StdEncoding.EncodeToString([]byte("admin")), http.StatusUnauthorized},
		{"valid credentials", "/api/status", basicAuth("admin", "secret"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.path, tt.auth)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header")
			}
		})
	}

	t.Run("query parameter", func(t *testing.T) {
		rec := get(t, s, "/api/status?auth="+basicAuth("admin", "secret"), "")
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

func TestDevicesEndpoint(t *testing.T) {
	t.Run("lists devices with roles", func(t *testing.T) {
		s := NewServer(&Options{Detector: &stubDetector{devices: []devices.DeviceInfo{
			{DevicePath: "/dev/video0", DeviceName: "Webcam", DeviceID: "usb-cam", Capture: true},
			{DevicePath: "/dev/video1", DeviceName: "Dummy video device", Output: true},
		}}})

		rec := get(t, s, "/api/devices", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var got models.DevicesData
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if got.Count != 2 {
			t.Fatalf("Expected 2 devices, got %d", got.Count)
		}
		if len(got.Devices[0].Roles) != 1 || got.Devices[0].Roles[0] != "source" {
			t.Errorf("Expected source role, got %v", got.Devices[0].Roles)
		}
		if len(got.Devices[1].Roles) != 1 || got.Devices[1].Roles[0] != "sink" {
			t.Errorf("Expected sink role, got %v", got.Devices[1].Roles)
		}
	})

	t.Run("enumeration failure", func(t *testing.T) {
		s := NewServer(&Options{Detector: &stubDetector{err: errors.New("no sysfs")}})
		if rec := get(t, s, "/api/devices", ""); rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
	})

	t.Run("no detector", func(t *testing.T) {
		s := NewServer(&Options{})
		if rec := get(t, s, "/api/devices", ""); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})
}

func TestMetricsMount(t *testing.T) {
	s := NewServer(&Options{PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v4l2forward_frames_total 4\n"))
	})})

	rec := get(t, s, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "frames_total") {
		t.Errorf("Expected metrics body, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestEventsStream(t *testing.T) {
	bus := events.New()
	s := NewServer(&Options{
		EventBus: bus,
		Status:   staticStatus{State: forward.StateStreaming, Source: "/dev/video0", Sink: "/dev/video1"},
	})

	ts := httptest.NewServer(s.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Expected event stream, got %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		close(lines)
	}()

	next := func() string {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("Stream closed early")
			}
			return line
		case <-time.After(2 * time.Second):
			t.Fatal("Timeout waiting for SSE data")
		}
		return ""
	}

	var initial events.StateChangedEvent
	if err := json.Unmarshal([]byte(next()), &initial); err != nil {
		t.Fatalf("Failed to decode initial event: %v", err)
	}
	if initial.To != "streaming" || initial.Source != "/dev/video0" {
		t.Errorf("Unexpected initial event %+v", initial)
	}

	// The handler subscribed before sending the initial state
	bus.Publish(events.RunFinishedEvent{Frames: 4, FPS: 30, MBps: 585.9375, Format: "640x480 YUYV"})

	var finished events.RunFinishedEvent
	if err := json.Unmarshal([]byte(next()), &finished); err != nil {
		t.Fatalf("Failed to decode finished event: %v", err)
	}
	if finished.Frames != 4 || finished.Format != "640x480 YUYV" {
		t.Errorf("Unexpected finished event %+v", finished)
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := NewServer(&Options{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil from Serve after Stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running after Stop")
	}

	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Error("Expected listener to be closed")
	}
}

func TestStopConcurrentWithStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := NewServer(&Options{})

		done := make(chan error, 1)
		go func() { done <- s.Start("127.0.0.1:0") }()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := s.Stop(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Expected nil from Start, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Start kept serving after Stop")
		}
	}
}

func TestStopWhileServing(t *testing.T) {
	s := NewServer(&Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	url := "http://" + ln.Addr().String() + "/api/health"

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil from Serve, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running after Stop")
	}

	client := &http.Client{Timeout: 200 * time.Millisecond}
	if resp, err := client.Get(url); err == nil {
		resp.Body.Close()
		t.Error("Expected requests to fail after Stop")
	}
}
