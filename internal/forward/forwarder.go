package forward

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Default run parameters.
const (
	DefaultCount   = 4
	DefaultBuffers = 4
)

// Config holds the parameters of a single run.
type Config struct {
	Count   int    // timed iterations after warmup
	Buffers uint32 // buffers requested per stream
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Count < 0 {
		return &ConfigurationError{Field: "count", Value: strconv.Itoa(c.Count), Reason: "must not be negative"}
	}
	if c.Buffers < 1 {
		return &ConfigurationError{Field: "buffers", Value: strconv.FormatUint(uint64(c.Buffers), 10), Reason: "must be at least 1"}
	}
	return nil
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithReporter sets the receiver of frame reports, state changes and the summary.
func WithReporter(r Reporter) Option {
	return func(f *Forwarder) {
		f.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithClock replaces time.Now for iteration timing.
func WithClock(now func() time.Time) Option {
	return func(f *Forwarder) {
		f.now = now
	}
}

// Forwarder runs the capture-to-output pipeline once.
type Forwarder struct {
	source   Source
	sink     Sink
	cfg      Config
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// New creates a Forwarder in the idle state.
func New(source Source, sink Sink, cfg Config, opts ...Option) *Forwarder {
	f := &Forwarder{
		source:   source,
		sink:     sink,
		cfg:      cfg,
		reporter: nopReporter{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		status: Status{
			State:  StateIdle,
			Source: source.Path(),
			Sink:   sink.Path(),
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Status returns a snapshot of the run. Safe for concurrent use.
func (f *Forwarder) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// State returns the current state.
func (f *Forwarder) State() State {
	return f.Status().State
}

// Run negotiates, streams Count frames and returns the summary. A Forwarder
// can only be run once.
func (f *Forwarder) Run() (Summary, error) {
	if state := f.State(); state != StateIdle {
		return Summary{}, fmt.Errorf("forwarder already %s", state)
	}

	if err := f.cfg.Validate(); err != nil {
		return Summary{}, f.abort(err)
	}
	if f.cfg.Buffers < 2 {
		f.logger.Warn("Fewer than two buffers per stream, frames may stall", "buffers", f.cfg.Buffers)
	}

	format, err := Negotiate(f.source, f.sink)
	if err != nil {
		return Summary{}, f.abort(err)
	}
	f.mu.Lock()
	f.status.Format = format
	f.mu.Unlock()
	f.logger.Info("Negotiated format", "format", format.String(), "size_image", format.SizeImage)
	f.transition(StateNegotiated)

	capture, err := f.source.OpenStream(f.cfg.Buffers)
	if err != nil {
		return Summary{}, f.abort(&StreamIOError{Path: f.source.Path(), Op: OpOpen, Iteration: -1, Err: err})
	}
	defer f.closeStream(f.source.Path(), capture)

	output, err := f.sink.OpenStream(f.cfg.Buffers)
	if err != nil {
		return Summary{}, f.abort(&StreamIOError{Path: f.sink.Path(), Op: OpOpen, Iteration: -1, Err: err})
	}
	defer f.closeStream(f.sink.Path(), output)

	// The first frame after STREAMON may be stale or already waiting, so it
	// carries no useful timing.
	if _, err := capture.Acquire(); err != nil {
		return Summary{}, f.abort(&StreamIOError{Path: f.source.Path(), Op: OpWarmup, Iteration: -1, Err: err})
	}
	f.transition(StateStreaming)

	var est Estimator
	var total uint64
	start := f.now()

	for i := 0; i < f.cfg.Count; i++ {
		t0 := f.now()

		buf, err := capture.Acquire()
		if err != nil {
			return Summary{}, f.abort(&StreamIOError{Path: f.source.Path(), Op: OpAcquire, Iteration: i, Err: err})
		}
		if err := output.Release(buf); err != nil {
			return Summary{}, f.abort(&StreamIOError{Path: f.sink.Path(), Op: OpRelease, Iteration: i, Err: err})
		}

		elapsed := f.now().Sub(t0)
		cur := Throughput(buf.Len(), elapsed)
		mean := est.Update(i, cur)
		total += uint64(buf.Len())

		f.mu.Lock()
		f.status.Frames = i + 1
		f.status.Bytes = total
		f.status.LastMBps = cur
		f.status.MeanMBps = mean
		f.mu.Unlock()

		f.reporter.FrameForwarded(FrameReport{
			Iteration: i,
			Sequence:  buf.Meta.Sequence,
			Timestamp: buf.Meta.Timestamp,
			Flags:     buf.Meta.Flags,
			Length:    buf.Len(),
			Elapsed:   elapsed,
			MBps:      cur,
			MeanMBps:  mean,
		})
	}

	elapsed := f.now().Sub(start)
	summary := Summary{
		Frames:  f.cfg.Count,
		Bytes:   total,
		Elapsed: elapsed,
		FPS:     framesPerSecond(f.cfg.Count, elapsed),
		MBps:    est.Mean(),
		Format:  format,
	}

	f.transition(StateDone)
	f.reporter.Finished(summary)
	f.logger.Info("Forwarding finished", "frames", summary.Frames, "fps", summary.FPS, "mbps", summary.MBps)

	return summary, nil
}

func (f *Forwarder) transition(to State) {
	f.mu.Lock()
	from := f.status.State
	f.status.State = to
	f.mu.Unlock()

	f.logger.Debug("State changed", "from", from, "to", to)
	f.reporter.StateChanged(from, to)
}

func (f *Forwarder) abort(err error) error {
	f.mu.Lock()
	f.status.Err = err
	f.mu.Unlock()

	var mismatch *FormatMismatchError
	if errors.As(err, &mismatch) {
		f.logger.Error("Format negotiation failed", "source_format", mismatch.Source.String(), "sink_format", mismatch.Sink.String())
	} else {
		f.logger.Error("Forwarding aborted", "error", err)
	}

	f.transition(StateAborted)
	return err
}

func (f *Forwarder) closeStream(path string, s io.Closer) {
	if err := s.Close(); err != nil {
		f.logger.Warn("Failed to tear down stream", "device", path, "error", err)
	}
}

func framesPerSecond(frames int, elapsed time.Duration) float64 {
	if frames == 0 || elapsed <= 0 {
		return 0
	}
	return float64(frames) / elapsed.Seconds()
}
