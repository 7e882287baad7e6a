package forward

import "fmt"

// Negotiate imposes the source's active format on the sink and verifies the
// result by reading the sink format back. Drivers are free to clamp or ignore
// the request, and some (v4l2loopback) only size their buffers once a format
// has been set explicitly, so the write is always followed by a read.
func Negotiate(source, sink Device) (Format, error) {
	want, err := source.Format()
	if err != nil {
		return Format{}, fmt.Errorf("read format of %s: %w", source.Path(), err)
	}

	if _, err := sink.SetFormat(want); err != nil {
		return Format{}, fmt.Errorf("set format %s on %s: %w", want, sink.Path(), err)
	}

	got, err := sink.Format()
	if err != nil {
		return Format{}, fmt.Errorf("read back format of %s: %w", sink.Path(), err)
	}

	if !want.Matches(got) {
		return Format{}, &FormatMismatchError{
			SourcePath: source.Path(),
			SinkPath:   sink.Path(),
			Source:     want,
			Sink:       got,
		}
	}

	return got, nil
}
