package config

import (
	"strconv"
	"strings"

	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
)

// Run holds the parameters of a forwarding run as given by the user.
type Run struct {
	Device        string
	Output        string
	Count         int
	Buffers       int
	TimeoutMs     int
	WaitDeviceMs  int
	LoggingLevel  string
	LoggingFormat string
}

// ValidateOptions rejects parameters no run could use. The first problem
// found is returned as a *forward.ConfigurationError.
func ValidateOptions(r Run) error {
	switch {
	case strings.TrimSpace(r.Device) == "":
		return invalid("device", r.Device, "must name a capture device")
	case strings.TrimSpace(r.Output) == "":
		return invalid("output", r.Output, "must name an output device")
	case r.Count < 0:
		return invalid("count", strconv.Itoa(r.Count), "must not be negative")
	case r.Buffers < 1:
		return invalid("buffers", strconv.Itoa(r.Buffers), "must be at least 1")
	case r.TimeoutMs < 0:
		return invalid("timeout-ms", strconv.Itoa(r.TimeoutMs), "must not be negative")
	case r.WaitDeviceMs < 0:
		return invalid("wait-device-ms", strconv.Itoa(r.WaitDeviceMs), "must not be negative")
	}

	if _, ok := logging.ParseLevel(r.LoggingLevel); r.LoggingLevel != "" && !ok {
		return invalid("logging-level", r.LoggingLevel, "must be one of debug, info, warn, error")
	}
	if r.LoggingFormat != "" && r.LoggingFormat != "text" && r.LoggingFormat != "json" {
		return invalid("logging-format", r.LoggingFormat, "must be text or json")
	}
	return nil
}

func invalid(field, value, reason string) error {
	return &forward.ConfigurationError{Field: field, Value: value, Reason: reason}
}
