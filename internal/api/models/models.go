// Package models holds the request and response bodies of the status API.
package models

// HealthData is the body of the health check.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// FormatData is a negotiated image format.
type FormatData struct {
	Width        uint32 `json:"width" example:"640" doc:"Width in pixels"`
	Height       uint32 `json:"height" example:"480" doc:"Height in pixels"`
	FourCC       string `json:"fourcc" example:"YUYV" doc:"Pixel encoding"`
	BytesPerLine uint32 `json:"bytes_per_line" example:"1280" doc:"Stride in bytes"`
	SizeImage    uint32 `json:"size_image" example:"614400" doc:"Bytes per frame"`
}

// StatusData is a snapshot of the forwarding run.
type StatusData struct {
	State    string      `json:"state" example:"streaming" enum:"idle,negotiated,streaming,done,aborted" doc:"Run state"`
	Source   string      `json:"source" example:"/dev/video0" doc:"Capture device path"`
	Sink     string      `json:"sink" example:"/dev/video1" doc:"Output device path"`
	Format   *FormatData `json:"format,omitempty" doc:"Negotiated format, absent before negotiation"`
	Frames   int         `json:"frames" example:"4" doc:"Timed frames forwarded"`
	Bytes    uint64      `json:"bytes" example:"2457600" doc:"Bytes forwarded"`
	LastMBps float64     `json:"last_mbps" example:"585.9" doc:"Throughput of the last iteration in MB/s"`
	MeanMBps float64     `json:"mean_mbps" example:"585.9" doc:"Running mean throughput in MB/s"`
	Error    string      `json:"error,omitempty" doc:"Failure that aborted the run"`
}

// StatusResponse wraps StatusData.
type StatusResponse struct {
	Body StatusData
}

// DeviceData describes one V4L2 node.
type DeviceData struct {
	DevicePath string   `json:"device_path" example:"/dev/video0" doc:"Device node"`
	DeviceName string   `json:"device_name" example:"HD Webcam" doc:"Card name"`
	DeviceID   string   `json:"device_id" example:"usb-046d_HD_Webcam-video-index0" doc:"Stable identifier"`
	Caps       uint32   `json:"caps" doc:"Raw capability flags"`
	Roles      []string `json:"roles" example:"[\"source\"]" doc:"Roles the device can take"`
}

// DevicesData lists devices.
type DevicesData struct {
	Devices []DeviceData `json:"devices" doc:"Capture and output devices"`
	Count   int          `json:"count" example:"2" doc:"Number of devices"`
}

// DevicesResponse wraps DevicesData.
type DevicesResponse struct {
	Body DevicesData
}

// LogEntryData is one buffered log record.
type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Sequence number, increasing"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"forward" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// LogsResponse lists recent log records, oldest first.
type LogsResponse struct {
	Body struct {
		Entries []LogEntryData `json:"entries" doc:"Recent log entries"`
	}
}
