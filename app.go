package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/v4l2forward/internal/api"
	"github.com/smazurov/v4l2forward/internal/config"
	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/smazurov/v4l2forward/internal/events"
	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
	"github.com/smazurov/v4l2forward/internal/metrics"
	"github.com/smazurov/v4l2forward/internal/report"
	"github.com/smazurov/v4l2forward/internal/systemd"
)

// app wires one forwarding run: devices, reporters, metrics and the optional
// status server.
type app struct {
	opts    *Options
	loadErr error
	console *report.Console
	bus     *events.Bus
	logger  *slog.Logger

	mu     sync.Mutex
	server *api.Server
	closed bool
}

// newApp prepares a run. A non-nil loadErr from config.LoadConfig makes Run
// fail before any device is touched.
func newApp(opts *Options, stdout io.Writer, loadErr error) *app {
	return &app{
		opts:    opts,
		loadErr: loadErr,
		console: report.NewConsole(stdout),
		bus:     events.New(),
		logger:  logging.GetLogger("main"),
	}
}

// Run forwards opts.Count frames and returns the first failure.
func (a *app) Run(ctx context.Context) error {
	if a.loadErr != nil {
		return a.loadErr
	}
	if err := config.ValidateOptions(a.opts.run()); err != nil {
		return err
	}

	logging.SetLogCallback(func(entry logging.LogEntry) {
		a.bus.Publish(events.LogEntryEvent{
			Seq:        entry.Seq,
			Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	})
	defer logging.SetLogCallback(nil)

	sourcePath, err := a.resolve(ctx, forward.RoleSource, a.opts.Device)
	if err != nil {
		return err
	}
	sinkPath, err := a.resolve(ctx, forward.RoleSink, a.opts.Output)
	if err != nil {
		return err
	}

	openOpts := devices.OpenOptions{
		TimeoutMs: a.opts.TimeoutMs,
		Logger:    logging.GetLogger("v4l2"),
	}

	a.console.UsingDevice(forward.RoleSource, sourcePath)
	source, err := devices.OpenSource(sourcePath, openOpts)
	if err != nil {
		return err
	}
	defer closeDevice(a.logger, sourcePath, source)

	a.console.UsingDevice(forward.RoleSink, sinkPath)
	sink, err := devices.OpenSink(sinkPath, openOpts)
	if err != nil {
		return err
	}
	defer closeDevice(a.logger, sinkPath, sink)

	if err := a.describe(source); err != nil {
		return err
	}
	if err := a.describe(sink); err != nil {
		return err
	}

	collector := metrics.NewCollector(sourcePath, sinkPath)
	defer collector.Subscribe(a.bus)()

	busReporter := events.NewReporter(a.bus, nil)
	fwd := forward.New(source, sink,
		forward.Config{Count: a.opts.Count, Buffers: uint32(a.opts.Buffers)},
		forward.WithReporter(forward.MultiReporter{
			a.console,
			formatAnnouncer{console: a.console, sink: sink, logger: a.logger},
			systemd.NewNotifier(a.logger),
			busReporter,
		}),
		forward.WithLogger(logging.GetLogger("forward")),
	)
	busReporter.SetStatusSource(fwd)

	if a.opts.Listen != "" {
		a.startServer(fwd)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	_, err = fwd.Run()
	return err
}

func (a *app) resolve(ctx context.Context, role forward.Role, arg string) (string, error) {
	path, err := devices.ResolveDevicePath(arg)
	if err != nil {
		return "", &forward.DeviceOpenError{Path: arg, Role: role, Err: err}
	}

	wait := time.Duration(a.opts.WaitDeviceMs) * time.Millisecond
	if err := devices.WaitForDevice(ctx, path, wait, logging.GetLogger("devices")); err != nil {
		return "", &forward.DeviceOpenError{Path: path, Role: role, Err: err}
	}
	return path, nil
}

type describer interface {
	Describe() (devices.Description, error)
}

// describe prints what a node reports about itself. A node whose active
// format cannot be read is unusable for forwarding.
func (a *app) describe(d describer) error {
	desc, err := d.Describe()
	if err != nil {
		return &forward.DeviceOpenError{Path: desc.Path, Role: desc.Role, Err: fmt.Errorf("query format: %w", err)}
	}
	a.logger.Debug("Device description", "device", desc)
	a.console.Describe("Active", desc)
	return nil
}

func (a *app) startServer(status events.StatusSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.server = api.NewServer(&api.Options{
		AuthUsername:      a.opts.AuthUsername,
		AuthPassword:      a.opts.AuthPassword,
		Status:            status,
		Detector:          devices.NewDetector(),
		EventBus:          a.bus,
		PrometheusHandler: metrics.Handler(),
	})

	go func(s *api.Server) {
		if err := s.Start(a.opts.Listen); err != nil {
			a.logger.Error("Status API server failed", "addr", a.opts.Listen, "error", err)
		}
	}(a.server)
}

// Shutdown stops the status server. It is safe to call more than once.
func (a *app) Shutdown(timeout time.Duration) {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.closed = true
	a.mu.Unlock()

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("Error stopping status API server", "error", err)
	}
}

func closeDevice(logger *slog.Logger, path string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close device", "path", path, "error", err)
	}
}

// formatAnnouncer prints the sink's committed format once negotiation
// succeeds.
type formatAnnouncer struct {
	console *report.Console
	sink    forward.Device
	logger  *slog.Logger
}

func (f formatAnnouncer) StateChanged(_, to forward.State) {
	if to != forward.StateNegotiated {
		return
	}
	format, err := f.sink.Format()
	if err != nil {
		f.logger.Warn("Failed to read negotiated sink format", "path", f.sink.Path(), "error", err)
		return
	}
	f.console.NewFormat(format)
}

func (formatAnnouncer) FrameForwarded(forward.FrameReport) {}
func (formatAnnouncer) Finished(forward.Summary)           {}
