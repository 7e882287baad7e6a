package forward

import "fmt"

// DeviceOpenError is returned when a device path is invalid or inaccessible.
type DeviceOpenError struct {
	Path string
	Role Role
	Err  error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("open %s device %s: %v", e.Role, e.Path, e.Err)
}

func (e *DeviceOpenError) Unwrap() error {
	return e.Err
}

// FormatMismatchError is returned when the sink did not adopt the source format.
type FormatMismatchError struct {
	SourcePath string
	SinkPath   string
	Source     Format
	Sink       Format
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("failed to enforce source format on sink device: %s has %s, %s has %s",
		e.SourcePath, e.Source, e.SinkPath, e.Sink)
}

// StreamIOError is returned when a stream operation fails. Iteration is -1
// for failures outside the timed loop.
type StreamIOError struct {
	Path      string
	Op        string
	Iteration int
	Err       error
}

func (e *StreamIOError) Error() string {
	if e.Iteration >= 0 {
		return fmt.Sprintf("%s on %s at iteration %d: %v", e.Op, e.Path, e.Iteration, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *StreamIOError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an unusable run parameter.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Stream operations named in StreamIOError.
const (
	OpOpen    = "open stream"
	OpWarmup  = "warmup acquire"
	OpAcquire = "acquire"
	OpRelease = "release"
)
