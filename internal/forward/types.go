package forward

import (
	"fmt"
	"time"
)

// BytesPerMB is the megabyte used for throughput figures.
const BytesPerMB = 1 << 20

// Format is the image geometry and pixel encoding shared by both devices.
// Only Width, Height and FourCC take part in agreement checks.
type Format struct {
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	FourCC       uint32 `json:"fourcc"`
	Field        uint32 `json:"field,omitempty"`
	BytesPerLine uint32 `json:"bytes_per_line,omitempty"`
	SizeImage    uint32 `json:"size_image,omitempty"`
	Colorspace   uint32 `json:"colorspace,omitempty"`
}

// Matches reports whether f and other agree on width, height and encoding.
func (f Format) Matches(other Format) bool {
	return f.Width == other.Width && f.Height == other.Height && f.FourCC == other.FourCC
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, FourCCString(f.FourCC))
}

// FourCCString renders a little-endian four character code.
func FourCCString(code uint32) string {
	return string([]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)})
}

// Metadata describes a dequeued buffer.
type Metadata struct {
	Sequence  uint32
	Timestamp time.Duration
	Flags     uint32
}

// Buffer is a slot borrowed from a stream. Data is only valid until the next
// call on the stream it came from.
type Buffer struct {
	Index int
	Data  []byte
	Meta  Metadata
}

// Len returns the number of bytes used in the buffer.
func (b Buffer) Len() int { return len(b.Data) }

// Device is a V4L2 node in a fixed role.
type Device interface {
	Path() string
	Format() (Format, error)
	// SetFormat returns the format the driver committed to.
	SetFormat(Format) (Format, error)
}

// CaptureStream hands out filled buffers.
type CaptureStream interface {
	// Acquire blocks until a filled buffer is ready. The buffer returned by
	// the previous call is given back to the driver.
	Acquire() (Buffer, error)
	Close() error
}

// OutputStream accepts buffers for display.
type OutputStream interface {
	// Release copies the buffer's bytes into the sink queue and blocks until
	// the queue accepts them.
	Release(Buffer) error
	Close() error
}

// Source is a capture device.
type Source interface {
	Device
	OpenStream(buffers uint32) (CaptureStream, error)
}

// Sink is an output device.
type Sink interface {
	Device
	OpenStream(buffers uint32) (OutputStream, error)
}

// Role is the part a device plays in a run.
type Role string

// Device roles.
const (
	RoleSource Role = "source"
	RoleSink   Role = "sink"
)

// State is the position of a run in its lifecycle.
type State string

// Run states.
const (
	StateIdle       State = "idle"
	StateNegotiated State = "negotiated"
	StateStreaming  State = "streaming"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// FrameReport is emitted once per timed iteration.
type FrameReport struct {
	Iteration int
	Sequence  uint32
	Timestamp time.Duration
	Flags     uint32
	Length    int
	Elapsed   time.Duration
	MBps      float64 // instantaneous throughput of this iteration
	MeanMBps  float64 // running mean including this iteration
}

// Summary is emitted once when a run completes.
type Summary struct {
	Frames  int
	Bytes   uint64
	Elapsed time.Duration
	FPS     float64
	MBps    float64
	Format  Format
}

// Status is a point-in-time view of a run.
type Status struct {
	State    State
	Source   string
	Sink     string
	Format   Format
	Frames   int
	Bytes    uint64
	LastMBps float64
	MeanMBps float64
	Err      error
}

// Reporter receives the observable output of a run.
type Reporter interface {
	StateChanged(from, to State)
	FrameForwarded(FrameReport)
	Finished(Summary)
}

type nopReporter struct{}

func (nopReporter) StateChanged(State, State)  {}
func (nopReporter) FrameForwarded(FrameReport) {}
func (nopReporter) Finished(Summary)           {}

// MultiReporter fans every call out to each reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) StateChanged(from, to State) {
	for _, r := range m {
		r.StateChanged(from, to)
	}
}

func (m MultiReporter) FrameForwarded(fr FrameReport) {
	for _, r := range m {
		r.FrameForwarded(fr)
	}
}

func (m MultiReporter) Finished(s Summary) {
	for _, r := range m {
		r.Finished(s)
	}
}
