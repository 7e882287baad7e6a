package forward

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestForwarderRun(t *testing.T) {
	src, sink := newPair(614400)
	rep := &recordingReporter{}
	f := New(src, sink, Config{Count: 4, Buffers: 4},
		WithReporter(rep),
		WithClock(steppingClock(time.Millisecond)),
	)

	summary, err := f.Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if src.acquires != 5 {
		t.Errorf("acquires = %d, want 5 (warmup + 4)", src.acquires)
	}
	if len(sink.releases) != 4 {
		t.Fatalf("releases = %d, want 4", len(sink.releases))
	}
	for i, data := range sink.releases {
		if len(data) != 614400 {
			t.Errorf("release %d length = %d, want 614400", i, len(data))
		}
		// Warmup is acquire #1, so iteration i forwards acquire #i+2.
		if data[0] != byte(i+2) {
			t.Errorf("release %d carries frame %d, want %d", i, data[0], i+2)
		}
	}
	if !src.closed || !sink.closed {
		t.Error("streams were not closed")
	}

	if len(rep.frames) != 4 {
		t.Fatalf("frame reports = %d, want 4", len(rep.frames))
	}
	for i, fr := range rep.frames {
		if fr.Iteration != i {
			t.Errorf("report %d iteration = %d", i, fr.Iteration)
		}
		if fr.Length != 614400 {
			t.Errorf("report %d length = %d, want 614400", i, fr.Length)
		}
		if fr.Sequence != uint32(i+1) {
			t.Errorf("report %d sequence = %d, want %d", i, fr.Sequence, i+1)
		}
		if fr.Elapsed != time.Millisecond {
			t.Errorf("report %d elapsed = %v, want 1ms", i, fr.Elapsed)
		}
		if !approxEqual(fr.MBps, 585.9375) || !approxEqual(fr.MeanMBps, 585.9375) {
			t.Errorf("report %d throughput = %v/%v, want 585.9375", i, fr.MBps, fr.MeanMBps)
		}
	}

	if len(rep.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(rep.summaries))
	}
	if rep.summaries[0] != summary {
		t.Errorf("reported summary %+v differs from returned %+v", rep.summaries[0], summary)
	}
	if summary.Frames != 4 || summary.Bytes != 4*614400 {
		t.Errorf("summary frames/bytes = %d/%d", summary.Frames, summary.Bytes)
	}
	// start, 4 x (t0, end), final read: 9 ticks of 1ms.
	if summary.Elapsed != 9*time.Millisecond {
		t.Errorf("summary elapsed = %v, want 9ms", summary.Elapsed)
	}
	if want := 4 / (9 * time.Millisecond).Seconds(); !approxEqual(summary.FPS, want) {
		t.Errorf("summary FPS = %v, want %v", summary.FPS, want)
	}
	if !approxEqual(summary.MBps, 585.9375) {
		t.Errorf("summary MB/s = %v, want 585.9375", summary.MBps)
	}
	if !summary.Format.Matches(vga) {
		t.Errorf("summary format = %s, want %s", summary.Format, vga)
	}

	wantStates := []State{StateNegotiated, StateStreaming, StateDone}
	if !reflect.DeepEqual(rep.states, wantStates) {
		t.Errorf("states = %v, want %v", rep.states, wantStates)
	}

	st := f.Status()
	if st.State != StateDone || st.Frames != 4 || st.Err != nil {
		t.Errorf("status = %+v", st)
	}
}

func TestForwarderMeanThroughput(t *testing.T) {
	src, sink := newPair(BytesPerMB)
	rep := &recordingReporter{}
	// start, then alternating t0/end steps give iteration times of 1s, 2s, 4s.
	clock := steppingClock(0, time.Second, 0, 2*time.Second, 0, 4*time.Second, 0)
	f := New(src, sink, Config{Count: 3, Buffers: 2}, WithReporter(rep), WithClock(clock))

	summary, err := f.Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	wantCur := []float64{1, 0.5, 0.25}
	wantMean := []float64{1, 0.75, 1.75 / 3}
	for i, fr := range rep.frames {
		if !approxEqual(fr.MBps, wantCur[i]) {
			t.Errorf("iteration %d MB/s = %v, want %v", i, fr.MBps, wantCur[i])
		}
		if !approxEqual(fr.MeanMBps, wantMean[i]) {
			t.Errorf("iteration %d mean = %v, want %v", i, fr.MeanMBps, wantMean[i])
		}
	}
	if !approxEqual(summary.MBps, 1.75/3) {
		t.Errorf("summary MB/s = %v, want %v", summary.MBps, 1.75/3)
	}
}

func TestForwarderZeroCount(t *testing.T) {
	src, sink := newPair(614400)
	rep := &recordingReporter{}
	f := New(src, sink, Config{Count: 0, Buffers: 4}, WithReporter(rep))

	summary, err := f.Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if src.acquires != 1 {
		t.Errorf("acquires = %d, want exactly the warmup", src.acquires)
	}
	if len(sink.releases) != 0 {
		t.Errorf("releases = %d, want 0", len(sink.releases))
	}
	if len(rep.frames) != 0 {
		t.Errorf("frame reports = %d, want 0", len(rep.frames))
	}
	if len(rep.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(rep.summaries))
	}
	if summary.Frames != 0 || summary.Bytes != 0 || summary.FPS != 0 || summary.MBps != 0 {
		t.Errorf("summary = %+v, want zero figures", summary)
	}
	if f.State() != StateDone {
		t.Errorf("state = %s, want done", f.State())
	}
}

func TestForwarderFormatMismatch(t *testing.T) {
	src, sink := newPair(614400)
	sink.commit = func(f Format) Format {
		f.Width, f.Height = 320, 240
		return f
	}
	rep := &recordingReporter{}
	f := New(src, sink, Config{Count: 4, Buffers: 4}, WithReporter(rep))

	_, err := f.Run()

	var mismatch *FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Run() error = %v, want FormatMismatchError", err)
	}
	if mismatch.Sink.Width != 320 || mismatch.Sink.Height != 240 {
		t.Errorf("mismatch sink = %s, want 320x240", mismatch.Sink)
	}
	if src.opened != 0 || sink.opened != 0 {
		t.Errorf("streams opened (%d, %d), want none", src.opened, sink.opened)
	}
	if len(rep.frames) != 0 || len(rep.summaries) != 0 {
		t.Error("aborted run must not report frames or a summary")
	}
	if !reflect.DeepEqual(rep.states, []State{StateAborted}) {
		t.Errorf("states = %v, want [aborted]", rep.states)
	}
	if st := f.Status(); st.Err != err {
		t.Errorf("status error = %v, want %v", st.Err, err)
	}
}

func TestForwarderStreamFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fakeSource, *fakeSink)
		wantOp      string
		wantPath    string
		wantIter    int
		wantReports int
		wantStates  []State
	}{
		{
			name:        "acquire fails on third iteration",
			setup:       func(s *fakeSource, _ *fakeSink) { s.failOn = 4 },
			wantOp:      OpAcquire,
			wantPath:    "/dev/video0",
			wantIter:    2,
			wantReports: 2,
			wantStates:  []State{StateNegotiated, StateStreaming, StateAborted},
		},
		{
			name:        "warmup acquire fails",
			setup:       func(s *fakeSource, _ *fakeSink) { s.failOn = 1 },
			wantOp:      OpWarmup,
			wantPath:    "/dev/video0",
			wantIter:    -1,
			wantReports: 0,
			wantStates:  []State{StateNegotiated, StateAborted},
		},
		{
			name:        "release fails on first iteration",
			setup:       func(_ *fakeSource, s *fakeSink) { s.failOn = 1 },
			wantOp:      OpRelease,
			wantPath:    "/dev/video1",
			wantIter:    0,
			wantReports: 0,
			wantStates:  []State{StateNegotiated, StateStreaming, StateAborted},
		},
		{
			name:        "capture stream cannot open",
			setup:       func(s *fakeSource, _ *fakeSink) { s.openErr = errUnplugged },
			wantOp:      OpOpen,
			wantPath:    "/dev/video0",
			wantIter:    -1,
			wantReports: 0,
			wantStates:  []State{StateNegotiated, StateAborted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, sink := newPair(614400)
			tt.setup(src, sink)
			rep := &recordingReporter{}
			f := New(src, sink, Config{Count: 4, Buffers: 4}, WithReporter(rep))

			_, err := f.Run()

			var ioErr *StreamIOError
			if !errors.As(err, &ioErr) {
				t.Fatalf("Run() error = %v, want StreamIOError", err)
			}
			if !errors.Is(err, errUnplugged) {
				t.Errorf("error does not wrap the device failure: %v", err)
			}
			if ioErr.Op != tt.wantOp || ioErr.Path != tt.wantPath || ioErr.Iteration != tt.wantIter {
				t.Errorf("StreamIOError = {%s %s %d}, want {%s %s %d}",
					ioErr.Path, ioErr.Op, ioErr.Iteration, tt.wantPath, tt.wantOp, tt.wantIter)
			}
			if len(rep.frames) != tt.wantReports {
				t.Errorf("frame reports = %d, want %d", len(rep.frames), tt.wantReports)
			}
			if len(rep.summaries) != 0 {
				t.Error("aborted run must not report a summary")
			}
			if !reflect.DeepEqual(rep.states, tt.wantStates) {
				t.Errorf("states = %v, want %v", rep.states, tt.wantStates)
			}
			if sink.opened > 0 && !sink.closed {
				t.Error("opened output stream was not closed")
			}
			if src.opened > 0 && src.openErr == nil && !src.closed {
				t.Error("opened capture stream was not closed")
			}
		})
	}
}

func TestForwarderInvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{name: "negative count", cfg: Config{Count: -1, Buffers: 4}, wantField: "count"},
		{name: "zero buffers", cfg: Config{Count: 4, Buffers: 0}, wantField: "buffers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, sink := newPair(16)
			f := New(src, sink, tt.cfg)

			_, err := f.Run()

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Run() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.wantField)
			}
			if sink.setCalls != 0 {
				t.Error("devices must not be touched with an invalid config")
			}
			if f.State() != StateAborted {
				t.Errorf("state = %s, want aborted", f.State())
			}
		})
	}
}

func TestForwarderRunsOnce(t *testing.T) {
	src, sink := newPair(16)
	f := New(src, sink, Config{Count: 1, Buffers: 2})

	if _, err := f.Run(); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}
	if _, err := f.Run(); err == nil {
		t.Error("second Run() should fail")
	}
	if src.acquires != 2 {
		t.Errorf("acquires = %d, second run must not touch the device", src.acquires)
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateNegotiated, false},
		{StateStreaming, false},
		{StateDone, true},
		{StateAborted, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestMultiReporter(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	src, sink := newPair(32)
	f := New(src, sink, Config{Count: 2, Buffers: 2}, WithReporter(MultiReporter{a, b}))

	if _, err := f.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	for i, r := range []*recordingReporter{a, b} {
		if len(r.frames) != 2 || len(r.summaries) != 1 || len(r.states) != 3 {
			t.Errorf("reporter %d saw %d frames, %d summaries, %d states", i, len(r.frames), len(r.summaries), len(r.states))
		}
	}
}
