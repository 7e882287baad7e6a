// Package systemd reports forwarding progress to the service manager through
// sd_notify when running as a Type=notify unit.
package systemd

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/v4l2forward/internal/forward"
)

// Notifier implements forward.Reporter. READY is sent once streaming starts,
// STATUS follows every frame and STOPPING marks the end of the run.
type Notifier struct {
	mu     sync.Mutex
	notify func(state string) (bool, error)
	logger *slog.Logger
	warned bool
}

// NewNotifier returns a Notifier backed by daemon.SdNotify. Outside systemd
// every call is a no-op.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		logger: logger,
	}
}

// StateChanged implements forward.Reporter.
func (n *Notifier) StateChanged(_, to forward.State) {
	switch to {
	case forward.StateStreaming:
		n.send(daemon.SdNotifyReady, "STATUS=streaming")
	case forward.StateDone:
		n.send(daemon.SdNotifyStopping, "STATUS=done")
	case forward.StateAborted:
		n.send(daemon.SdNotifyStopping, "STATUS=aborted")
	}
}

// FrameForwarded implements forward.Reporter.
func (n *Notifier) FrameForwarded(fr forward.FrameReport) {
	n.send(fmt.Sprintf("STATUS=forwarded %d frames, %.1f MB/s", fr.Iteration+1, fr.MeanMBps))
}

// Finished implements forward.Reporter.
func (n *Notifier) Finished(s forward.Summary) {
	n.send(fmt.Sprintf("STATUS=finished %d frames, %.2f fps, %.1f MB/s", s.Frames, s.FPS, s.MBps))
}

func (n *Notifier) send(states ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.notify(strings.Join(states, "\n")); err != nil && !n.warned {
		n.warned = true
		n.logger.Warn("sd_notify failed", "error", err)
	}
}
