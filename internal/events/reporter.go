package events

import (
	"time"

	"github.com/smazurov/v4l2forward/internal/forward"
)

// StatusSource yields the forwarder's current status.
type StatusSource interface {
	Status() forward.Status
}

// Reporter publishes forwarder progress on the bus.
type Reporter struct {
	bus    *Bus
	status StatusSource
	now    func() time.Time
}

// NewReporter creates a Reporter. status may be nil; it is only consulted to
// attach device paths and the abort cause to state changes.
func NewReporter(bus *Bus, status StatusSource) *Reporter {
	return &Reporter{bus: bus, status: status, now: time.Now}
}

// SetStatusSource attaches the forwarder once it exists.
func (r *Reporter) SetStatusSource(status StatusSource) {
	r.status = status
}

// StateChanged implements forward.Reporter.
func (r *Reporter) StateChanged(from, to forward.State) {
	ev := StateChangedEvent{
		From:      string(from),
		To:        string(to),
		Timestamp: r.now().Format(time.RFC3339),
	}
	if r.status != nil {
		st := r.status.Status()
		ev.Source = st.Source
		ev.Sink = st.Sink
		if to == forward.StateAborted && st.Err != nil {
			ev.Error = st.Err.Error()
		}
	}
	r.bus.Publish(ev)
}

// FrameForwarded implements forward.Reporter.
func (r *Reporter) FrameForwarded(fr forward.FrameReport) {
	r.bus.Publish(FrameForwardedEvent{
		Iteration: fr.Iteration,
		Sequence:  fr.Sequence,
		Timestamp: fr.Timestamp.Seconds(),
		Flags:     fr.Flags,
		Length:    fr.Length,
		Elapsed:   fr.Elapsed.Seconds(),
		MBps:      fr.MBps,
		MeanMBps:  fr.MeanMBps,
	})
}

// Finished implements forward.Reporter.
func (r *Reporter) Finished(s forward.Summary) {
	r.bus.Publish(RunFinishedEvent{
		Frames:  s.Frames,
		Bytes:   s.Bytes,
		Elapsed: s.Elapsed.Seconds(),
		FPS:     s.FPS,
		MBps:    s.MBps,
		Format:  s.Format.String(),
	})
}
