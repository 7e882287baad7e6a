package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/spf13/cobra"
)

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List V4L2 capture and output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices(cmd.OutOrStdout(), devices.NewDetector())
		},
	}
}

func listDevices(w io.Writer, detector devices.DeviceDetector) error {
	found, err := detector.FindDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	if len(found) == 0 {
		fmt.Fprintln(w, "No V4L2 capture or output devices found")
		return nil
	}

	for _, d := range found {
		roles := make([]string, 0, 2)
		for _, r := range d.Roles() {
			roles = append(roles, string(r))
		}
		fmt.Fprintf(w, "%-14s %-32s %s\n", d.DevicePath, d.DeviceName, strings.Join(roles, ","))
		if d.DeviceID != "" {
			fmt.Fprintf(w, "               id: %s\n", d.DeviceID)
		}
	}
	return nil
}
