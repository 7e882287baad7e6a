//go:build linux

package devices

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/smazurov/v4l2forward/internal/logging"
	"github.com/smazurov/v4l2forward/pkg/linuxav/v4l2"
)

var (
	errNotCapture  = errors.New("not a video capture device")
	errNotOutput   = errors.New("not a video output device")
	errNoStreaming = errors.New("device does not support streaming I/O")
)

// node binds an open V4L2 device to the queue of its role.
type node struct {
	dev       *v4l2.Device
	role      forward.Role
	typ       v4l2.BufType
	timeoutMs int
	logger    *slog.Logger
}

func openNode(path string, role forward.Role, opts OpenOptions) (*node, error) {
	dev, err := v4l2.OpenDevice(path)
	if err != nil {
		return nil, &forward.DeviceOpenError{Path: path, Role: role, Err: err}
	}

	cap := dev.Capability()
	switch {
	case role == forward.RoleSource && !cap.IsCapture():
		err = errNotCapture
	case role == forward.RoleSink && !cap.IsOutput():
		err = errNotOutput
	case !cap.CanStream():
		err = errNoStreaming
	}
	if err != nil {
		_ = dev.Close()
		return nil, &forward.DeviceOpenError{Path: path, Role: role, Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("v4l2")
	}

	return &node{
		dev:       dev,
		role:      role,
		typ:       bufType(role),
		timeoutMs: opts.TimeoutMs,
		logger:    logger.With("device", path, "role", string(role)),
	}, nil
}

func (n *node) Path() string { return n.dev.Path() }

func (n *node) Format() (forward.Format, error) {
	pix, err := n.dev.Format(n.typ)
	if err != nil {
		return forward.Format{}, err
	}
	return fromPixFormat(pix), nil
}

func (n *node) SetFormat(f forward.Format) (forward.Format, error) {
	pix, err := n.dev.SetFormat(n.typ, toPixFormat(f))
	if err != nil {
		return forward.Format{}, err
	}
	n.logger.Debug("Format committed", "requested", f.String(), "committed", fromPixFormat(pix).String())
	return fromPixFormat(pix), nil
}

// Describe queries capabilities, the active format and streaming parameters.
func (n *node) Describe() (Description, error) {
	cap := n.dev.Capability()
	d := Description{
		Path:    n.dev.Path(),
		Role:    n.role,
		Driver:  cap.Driver,
		Card:    cap.Card,
		BusInfo: cap.BusInfo,
		Version: fmt.Sprintf("%d.%d.%d", (cap.Version>>16)&0xff, (cap.Version>>8)&0xff, cap.Version&0xff),
		Caps:    capNames(cap),
	}

	format, err := n.Format()
	if err != nil {
		return d, err
	}
	d.Format = format

	params, err := n.dev.Params(n.typ)
	if err != nil {
		// Not every driver implements G_PARM; the rest of the description is still useful.
		n.logger.Debug("Streaming parameters unavailable", "error", err)
		return d, nil
	}
	d.Framerate = Framerate{Numerator: params.TimePerFrame.Numerator, Denominator: params.TimePerFrame.Denominator}
	d.Buffers = params.Buffers
	return d, nil
}

func (n *node) Close() error {
	return n.dev.Close()
}

func (n *node) openMmap(count uint32) (*v4l2.MmapStream, error) {
	stream, err := v4l2.NewMmapStream(n.dev, n.typ, count)
	if err != nil {
		return nil, err
	}
	stream.SetTimeout(n.timeoutMs)
	if stream.Len() != int(count) {
		n.logger.Info("Driver adjusted buffer count", "requested", count, "granted", stream.Len())
	}
	return stream, nil
}

type captureDevice struct {
	*node
}

// OpenSource opens a capture node for forwarding.
func OpenSource(path string, opts OpenOptions) (CaptureDevice, error) {
	n, err := openNode(path, forward.RoleSource, opts)
	if err != nil {
		return nil, err
	}
	return &captureDevice{node: n}, nil
}

func (c *captureDevice) OpenStream(buffers uint32) (forward.CaptureStream, error) {
	stream, err := c.openMmap(buffers)
	if err != nil {
		return nil, err
	}
	return &captureStream{stream: stream, logger: c.logger}, nil
}

type outputDevice struct {
	*node
}

// OpenSink opens an output node for forwarding.
func OpenSink(path string, opts OpenOptions) (OutputDevice, error) {
	n, err := openNode(path, forward.RoleSink, opts)
	if err != nil {
		return nil, err
	}
	return &outputDevice{node: n}, nil
}

func (o *outputDevice) OpenStream(buffers uint32) (forward.OutputStream, error) {
	stream, err := o.openMmap(buffers)
	if err != nil {
		return nil, err
	}
	return &outputStream{stream: stream}, nil
}

type captureStream struct {
	stream *v4l2.MmapStream
	logger *slog.Logger
}

func (s *captureStream) Acquire() (forward.Buffer, error) {
	frame, err := s.stream.Next()
	if err != nil {
		return forward.Buffer{}, err
	}
	if frame.Corrupted() {
		s.logger.Warn("Driver flagged buffer as corrupted", "index", frame.Index, "sequence", frame.Sequence)
	}
	return forward.Buffer{
		Index: frame.Index,
		Data:  frame.Data,
		Meta: forward.Metadata{
			Sequence:  frame.Sequence,
			Timestamp: frame.Timestamp,
			Flags:     frame.Flags,
		},
	}, nil
}

func (s *captureStream) Close() error {
	return s.stream.Close()
}

type outputStream struct {
	stream *v4l2.MmapStream
}

func (s *outputStream) Release(b forward.Buffer) error {
	return s.stream.Write(b.Data, b.Meta.Timestamp)
}

func (s *outputStream) Close() error {
	return s.stream.Close()
}

func fromPixFormat(p v4l2.PixFormat) forward.Format {
	return forward.Format{
		Width:        p.Width,
		Height:       p.Height,
		FourCC:       p.PixelFormat,
		Field:        p.Field,
		BytesPerLine: p.BytesPerLine,
		SizeImage:    p.SizeImage,
		Colorspace:   p.Colorspace,
	}
}

func toPixFormat(f forward.Format) v4l2.PixFormat {
	return v4l2.PixFormat{
		Width:        f.Width,
		Height:       f.Height,
		PixelFormat:  f.FourCC,
		Field:        f.Field,
		BytesPerLine: f.BytesPerLine,
		SizeImage:    f.SizeImage,
		Colorspace:   f.Colorspace,
	}
}

func capNames(cap v4l2.Capability) []string {
	var names []string
	if cap.IsCapture() {
		names = append(names, "VIDEO_CAPTURE")
	}
	if cap.IsOutput() {
		names = append(names, "VIDEO_OUTPUT")
	}
	if cap.CanStream() {
		names = append(names, "STREAMING")
	}
	return names
}
