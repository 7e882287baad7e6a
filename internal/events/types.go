package events

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeFrameForwarded
	TypeRunFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published on every forwarder state transition.
type StateChangedEvent struct {
	Source    string `json:"source" example:"/dev/video0" doc:"Capture device path"`
	Sink      string `json:"sink" example:"/dev/video1" doc:"Output device path"`
	From      string `json:"from" example:"negotiated" doc:"Previous state"`
	To        string `json:"to" example:"streaming" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Failure that caused an abort"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// FrameForwardedEvent is published once per timed iteration.
type FrameForwardedEvent struct {
	Iteration int     `json:"iteration" example:"0" doc:"Zero-based timed iteration"`
	Sequence  uint32  `json:"sequence" example:"1" doc:"Driver frame sequence number"`
	Timestamp float64 `json:"timestamp" example:"12.345678" doc:"Capture timestamp in seconds"`
	Flags     uint32  `json:"flags" doc:"Driver buffer flags"`
	Length    int     `json:"length" example:"614400" doc:"Bytes forwarded"`
	Elapsed   float64 `json:"elapsed" example:"0.001" doc:"Acquire plus release time in seconds"`
	MBps      float64 `json:"mbps" example:"585.9" doc:"Throughput of this iteration in MB/s"`
	MeanMBps  float64 `json:"mean_mbps" example:"585.9" doc:"Running mean throughput in MB/s"`
}

// Type returns the event type identifier for FrameForwardedEvent.
func (e FrameForwardedEvent) Type() uint32 { return TypeFrameForwarded }

// RunFinishedEvent is published once when a run completes.
type RunFinishedEvent struct {
	Frames  int     `json:"frames" example:"4" doc:"Timed frames forwarded"`
	Bytes   uint64  `json:"bytes" example:"2457600" doc:"Bytes forwarded"`
	Elapsed float64 `json:"elapsed" doc:"Duration of the timed loop in seconds"`
	FPS     float64 `json:"fps" example:"29.97" doc:"Frames per second"`
	MBps    float64 `json:"mbps" example:"585.9" doc:"Mean throughput in MB/s"`
	Format  string  `json:"format" example:"640x480 YUYV" doc:"Negotiated format"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }

// LogEntryEvent represents a log entry.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"forward" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
