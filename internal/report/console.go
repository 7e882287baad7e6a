// Package report prints forwarding progress in human readable form.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/v4l2forward/internal/devices"
	"github.com/smazurov/v4l2forward/internal/forward"
)

// Console writes frame reports and the run summary to w. It implements
// forward.Reporter and is safe for concurrent use.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// UsingDevice announces a resolved device path.
func (c *Console) UsingDevice(role forward.Role, path string) {
	label := "device"
	if role == forward.RoleSink {
		label = "sink device"
	}
	c.printf("Using %s: %s\n\n", label, path)
}

// Describe prints what a device reported about itself. title is a prefix
// such as "Active" or "New".
func (c *Console) Describe(title string, d devices.Description) {
	short := "cap"
	if d.Role == forward.RoleSink {
		short = "out"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s capabilities:\n", title, short)
	fmt.Fprintf(&b, "Driver      : %s\n", d.Driver)
	fmt.Fprintf(&b, "Card        : %s\n", d.Card)
	fmt.Fprintf(&b, "Bus         : %s\n", d.BusInfo)
	fmt.Fprintf(&b, "Version     : %s\n", d.Version)
	fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(d.Caps, ", "))
	writeFormat(&b, fmt.Sprintf("%s %s format:\n", title, short), d.Format)
	fmt.Fprintf(&b, "%s %s parameters:\n", title, short)
	fmt.Fprintf(&b, "Frame time  : %d/%d (%.2f fps)\n", d.Framerate.Numerator, d.Framerate.Denominator, d.Framerate.FPS())
	fmt.Fprintf(&b, "Buffers     : %d\n", d.Buffers)

	c.printf("%s\n", b.String())
}

// NewFormat prints the sink format after negotiation.
func (c *Console) NewFormat(f forward.Format) {
	var b strings.Builder
	writeFormat(&b, "New out format:\n", f)
	c.printf("%s\n", b.String())
}

func writeFormat(b *strings.Builder, header string, f forward.Format) {
	b.WriteString(header)
	fmt.Fprintf(b, "Width       : %d\n", f.Width)
	fmt.Fprintf(b, "Height      : %d\n", f.Height)
	fmt.Fprintf(b, "FourCC      : %s\n", forward.FourCCString(f.FourCC))
	fmt.Fprintf(b, "Field       : %d\n", f.Field)
	fmt.Fprintf(b, "Stride      : %d\n", f.BytesPerLine)
	fmt.Fprintf(b, "Size        : %d\n", f.SizeImage)
	fmt.Fprintf(b, "Colorspace  : %d\n", f.Colorspace)
}

// StateChanged implements forward.Reporter. State changes are left to the
// logs.
func (c *Console) StateChanged(_, _ forward.State) {}

// FrameForwarded implements forward.Reporter.
func (c *Console) FrameForwarded(fr forward.FrameReport) {
	c.printf("Buffer\n  sequence  : %d\n  timestamp : %s\n  flags     : %d\n  length    : %d\n",
		fr.Sequence, formatTimestamp(fr.Timestamp), fr.Flags, fr.Length)
}

// Finished implements forward.Reporter.
func (c *Console) Finished(s forward.Summary) {
	c.printf("\nFPS: %v\nMB/s: %v\n", s.FPS, s.MBps)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// formatTimestamp renders a capture timestamp as seconds.microseconds.
func formatTimestamp(d time.Duration) string {
	sec := d / time.Second
	usec := (d % time.Second) / time.Microsecond
	return fmt.Sprintf("%d.%06d", int64(sec), int64(usec))
}
