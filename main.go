package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/v4l2forward/cmd"
	"github.com/smazurov/v4l2forward/internal/config"
	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
	"github.com/smazurov/v4l2forward/internal/version"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"v4l2forward.toml"`

	// Forwarding settings
	Device       string `help:"Capture device: index, /dev path or stable id" short:"d" default:"0" toml:"forward.device" env:"DEVICE"`
	Output       string `help:"Output device: index, /dev path or stable id" short:"o" default:"1" toml:"forward.output" env:"OUTPUT"`
	Count        int    `help:"Frames to forward after warmup" short:"n" default:"4" toml:"forward.count" env:"COUNT"`
	Buffers      int    `help:"Buffers requested per stream" short:"b" default:"4" toml:"forward.buffers" env:"BUFFERS"`
	TimeoutMs    int    `help:"Wait at most this long for each frame, 0 blocks" default:"0" toml:"forward.timeout_ms" env:"TIMEOUT_MS"`
	WaitDeviceMs int    `help:"Wait this long for missing device nodes to appear" default:"0" toml:"forward.wait_device_ms" env:"WAIT_DEVICE_MS"`

	// Status server settings
	Listen       string `help:"Serve the status API on this address, empty disables it" default:"" toml:"server.listen" env:"SERVER_LISTEN"`
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingForward   string `help:"Forwarder logging level" default:"info" toml:"logging.forward" env:"LOGGING_FORWARD"`
	LoggingDevices   string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingStreaming string `help:"V4L2 buffer streaming logging level" default:"info" toml:"logging.v4l2" env:"LOGGING_V4L2"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) run() config.Run {
	return config.Run{
		Device:        o.Device,
		Output:        o.Output,
		Count:         o.Count,
		Buffers:       o.Buffers,
		TimeoutMs:     o.TimeoutMs,
		WaitDeviceMs:  o.WaitDeviceMs,
		LoggingLevel:  o.LoggingLevel,
		LoggingFormat: o.LoggingFormat,
	}
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Flags > environment > file > defaults
		loadErr := config.LoadConfig(opts, root)

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"forward": opts.LoggingForward,
				"devices": opts.LoggingDevices,
				"v4l2":    opts.LoggingStreaming,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")
		ctx, cancel := context.WithCancel(context.Background())
		app := newApp(opts, os.Stdout, loadErr)

		hooks.OnStart(func() {
			defer cancel()
			if err := app.Run(ctx); err != nil {
				var cfgErr *forward.ConfigurationError
				if errors.As(err, &cfgErr) {
					logger.Error("Invalid configuration", "error", err)
				} else {
					logger.Error("Forwarding failed", "error", err)
				}
				app.Shutdown(5 * time.Second)
				os.Exit(1)
			}
			app.Shutdown(5 * time.Second)
		})

		hooks.OnStop(func() {
			logger.Info("Interrupted, shutting down")
			cancel()
			app.Shutdown(time.Second)
		})
	})

	root = cli.Root()
	root.Use = "v4l2forward"
	root.Short = "Forward frames from a V4L2 capture device to a V4L2 output device"
	root.Version = version.Get().String()

	root.AddCommand(cmd.CreateInfoCmd())
	root.AddCommand(cmd.CreateListCmd())

	cli.Run()
}
