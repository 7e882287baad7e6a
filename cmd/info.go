package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
	"github.com/smazurov/v4l2forward/internal/report"
	"github.com/spf13/cobra"
)

// CreateInfoCmd creates the info command.
func CreateInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [device]",
		Short: "Show capabilities, format and supported formats of a device",
		Long: `Opens the device (index, /dev path or stable id, default 0) in whichever ` +
			`role it supports and prints its capabilities, active format, streaming ` +
			`parameters and enumerated formats.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "0"
			if len(args) == 1 {
				arg = args[0]
			}

			path, err := devices.ResolveDevicePath(arg)
			if err != nil {
				return err
			}

			desc, err := describeDevice(path)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			report.NewConsole(w).Describe("Active", desc)
			return printFormats(w, devices.NewDetector(), path, desc.Role)
		},
	}
}

// describeDevice opens path as a capture node, falling back to output.
func describeDevice(path string) (devices.Description, error) {
	opts := devices.OpenOptions{Logger: logging.GetLogger("v4l2")}

	source, srcErr := devices.OpenSource(path, opts)
	if srcErr == nil {
		defer source.Close()
		return source.Describe()
	}

	sink, sinkErr := devices.OpenSink(path, opts)
	if sinkErr == nil {
		defer sink.Close()
		return sink.Describe()
	}

	return devices.Description{}, errors.Join(srcErr, sinkErr)
}

func printFormats(w io.Writer, detector devices.DeviceDetector, path string, role forward.Role) error {
	formats, err := detector.GetDeviceFormats(path, role)
	if err != nil {
		return fmt.Errorf("failed to enumerate formats: %w", err)
	}

	fmt.Fprintln(w, "Supported formats:")
	for _, f := range formats {
		emulated := ""
		if f.Emulated {
			emulated = " (emulated)"
		}
		fmt.Fprintf(w, "  %s %s%s\n", f.FourCC, f.FormatName, emulated)

		resolutions, err := detector.GetDeviceResolutions(path, f.PixelFormat)
		if err != nil {
			continue
		}
		for _, r := range resolutions {
			fmt.Fprintf(w, "    %dx%d", r.Width, r.Height)
			rates, err := detector.GetDeviceFramerates(path, f.PixelFormat, r.Width, r.Height)
			if err == nil {
				for _, fr := range rates {
					fmt.Fprintf(w, " %.2f", fr.FPS())
				}
				if len(rates) > 0 {
					fmt.Fprint(w, " fps")
				}
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
