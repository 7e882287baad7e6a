package forward

import (
	"errors"
	"testing"
)

func TestNegotiate(t *testing.T) {
	yuyv := vga.FourCC
	mjpg := uint32('M' | 'J'<<8 | 'P'<<16 | 'G'<<24)

	tests := []struct {
		name         string
		commit       func(Format) Format
		wantMismatch bool
	}{
		{
			name:   "driver honors request",
			commit: nil,
		},
		{
			name: "driver adjusts ancillary fields only",
			commit: func(f Format) Format {
				f.BytesPerLine = 1344
				f.SizeImage = 645120
				return f
			},
		},
		{
			name: "driver clamps geometry",
			commit: func(f Format) Format {
				f.Width, f.Height = 320, 240
				return f
			},
			wantMismatch: true,
		},
		{
			name: "driver substitutes encoding",
			commit: func(f Format) Format {
				f.FourCC = mjpg
				return f
			},
			wantMismatch: true,
		},
		{
			name: "driver ignores request",
			commit: func(_ Format) Format {
				return Format{Width: 1280, Height: 720, FourCC: yuyv}
			},
			wantMismatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, sink := newPair(0)
			sink.commit = tt.commit

			got, err := Negotiate(src, sink)

			if sink.setCalls != 1 {
				t.Errorf("SetFormat called %d times, want 1", sink.setCalls)
			}

			if tt.wantMismatch {
				var mismatch *FormatMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("Negotiate() error = %v, want FormatMismatchError", err)
				}
				if !mismatch.Source.Matches(vga) {
					t.Errorf("mismatch.Source = %s, want %s", mismatch.Source, vga)
				}
				if mismatch.Sink.Matches(vga) {
					t.Errorf("mismatch.Sink = %s should differ from source", mismatch.Sink)
				}
				return
			}

			if err != nil {
				t.Fatalf("Negotiate() failed: %v", err)
			}
			if !got.Matches(vga) {
				t.Errorf("Negotiate() = %s, want %s", got, vga)
			}
		})
	}
}

func TestNegotiateReadsBackSinkFormat(t *testing.T) {
	src, sink := newPair(0)
	// SetFormat reports success but the stored format is what a later
	// G_FMT returns.
	sink.commit = func(f Format) Format {
		f.Height = 240
		return f
	}

	_, err := Negotiate(src, sink)
	var mismatch *FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Negotiate() error = %v, want FormatMismatchError", err)
	}
	if mismatch.SinkPath != "/dev/video1" || mismatch.SourcePath != "/dev/video0" {
		t.Errorf("paths = %q/%q", mismatch.SourcePath, mismatch.SinkPath)
	}
}

func TestNegotiateDeviceErrors(t *testing.T) {
	t.Run("source format unreadable", func(t *testing.T) {
		src, sink := newPair(0)
		src.formatErr = errUnplugged
		if _, err := Negotiate(src, sink); !errors.Is(err, errUnplugged) {
			t.Errorf("Negotiate() error = %v, want wrapped errUnplugged", err)
		}
		if sink.setCalls != 0 {
			t.Error("sink format must not be touched when the source format is unknown")
		}
	})

	t.Run("sink rejects format", func(t *testing.T) {
		src, sink := newPair(0)
		sink.setErr = errUnplugged
		_, err := Negotiate(src, sink)
		if !errors.Is(err, errUnplugged) {
			t.Errorf("Negotiate() error = %v, want wrapped errUnplugged", err)
		}
		var mismatch *FormatMismatchError
		if errors.As(err, &mismatch) {
			t.Error("I/O failure should not be reported as a mismatch")
		}
	})
}
