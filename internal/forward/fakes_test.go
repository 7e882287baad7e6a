package forward

import (
	"errors"
	"time"
)

var errUnplugged = errors.New("no such device")

type fakeDevice struct {
	path      string
	format    Format
	commit    func(Format) Format // driver adjustment applied by SetFormat
	setErr    error
	formatErr error
	setCalls  int
}

func (d *fakeDevice) Path() string { return d.path }

func (d *fakeDevice) Format() (Format, error) {
	if d.formatErr != nil {
		return Format{}, d.formatErr
	}
	return d.format, nil
}

func (d *fakeDevice) SetFormat(f Format) (Format, error) {
	d.setCalls++
	if d.setErr != nil {
		return Format{}, d.setErr
	}
	if d.commit != nil {
		f = d.commit(f)
	}
	d.format = f
	return f, nil
}

type fakeSource struct {
	fakeDevice
	frameSize int
	failOn    int // 1-based Acquire call that fails, 0 for never
	openErr   error
	opened    int
	acquires  int
	closed    bool
}

func (s *fakeSource) OpenStream(_ uint32) (CaptureStream, error) {
	s.opened++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s, nil
}

func (s *fakeSource) Acquire() (Buffer, error) {
	s.acquires++
	if s.failOn > 0 && s.acquires == s.failOn {
		return Buffer{}, errUnplugged
	}
	data := make([]byte, s.frameSize)
	data[0] = byte(s.acquires)
	return Buffer{
		Index: (s.acquires - 1) % 4,
		Data:  data,
		Meta: Metadata{
			Sequence:  uint32(s.acquires - 1),
			Timestamp: time.Duration(s.acquires) * 33 * time.Millisecond,
		},
	}, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeSink struct {
	fakeDevice
	failOn   int // 1-based Release call that fails, 0 for never
	opened   int
	releases [][]byte
	calls    int
	closed   bool
}

func (s *fakeSink) OpenStream(_ uint32) (OutputStream, error) {
	s.opened++
	return s, nil
}

func (s *fakeSink) Release(b Buffer) error {
	s.calls++
	if s.failOn > 0 && s.calls == s.failOn {
		return errUnplugged
	}
	s.releases = append(s.releases, append([]byte(nil), b.Data...))
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type recordingReporter struct {
	states    []State
	frames    []FrameReport
	summaries []Summary
}

func (r *recordingReporter) StateChanged(_, to State)      { r.states = append(r.states, to) }
func (r *recordingReporter) FrameForwarded(fr FrameReport) { r.frames = append(r.frames, fr) }
func (r *recordingReporter) Finished(s Summary)            { r.summaries = append(r.summaries, s) }

// steppingClock advances by the next step on every call, repeating the last
// step once the list is exhausted.
func steppingClock(steps ...time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	i := 0
	return func() time.Time {
		t := now
		step := steps[len(steps)-1]
		if i < len(steps) {
			step = steps[i]
		}
		i++
		now = now.Add(step)
		return t
	}
}

var vga = Format{Width: 640, Height: 480, FourCC: 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24, SizeImage: 614400}

func newPair(frameSize int) (*fakeSource, *fakeSink) {
	src := &fakeSource{fakeDevice: fakeDevice{path: "/dev/video0", format: vga}, frameSize: frameSize}
	sink := &fakeSink{fakeDevice: fakeDevice{path: "/dev/video1", format: Format{Width: 1280, Height: 720}}}
	return src, sink
}
