//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"time"
	"unsafe"
)

// MmapStream is a fixed pool of driver-allocated buffers mapped into process
// memory. Slots are addressed by index; the application owns at most one
// capture slot at a time and hands it back on the next call to Next.
type MmapStream struct {
	dev       *Device
	typ       BufType
	buffers   [][]byte
	held      int   // capture slot owned by the application, -1 if none
	free      []int // output slots not currently queued to the driver
	streaming bool
	timeoutMs int
}

// NewMmapStream requests count MMAP buffers on the given queue and maps them.
// The driver may grant a different count; Len reports the actual size.
func NewMmapStream(dev *Device, typ BufType, count uint32) (*MmapStream, error) {
	if count == 0 {
		return nil, errors.New("buffer count must be at least 1")
	}

	req := v4l2Requestbuffers{
		count:  count,
		typ:    uint32(typ),
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(dev.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("VIDIOC_REQBUFS(%s, %d) on %s: %w", typ, count, dev.path, err)
	}
	if req.count == 0 {
		return nil, fmt.Errorf("%s: driver granted no %s buffers", dev.path, typ)
	}

	s := &MmapStream{
		dev:     dev,
		typ:     typ,
		buffers: make([][]byte, 0, req.count),
		held:    -1,
	}

	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{
			index:  i,
			typ:    uint32(typ),
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(dev.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("VIDIOC_QUERYBUF(%d) on %s: %w", i, dev.path, err)
		}

		data, err := mmap(dev.fd, buf.offset, buf.length)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mmap buffer %d on %s: %w", i, dev.path, err)
		}
		s.buffers = append(s.buffers, data)
		s.free = append(s.free, int(i))
	}

	return s, nil
}

// SetTimeout bounds how long Next and Write wait for the driver.
// Zero waits indefinitely.
func (s *MmapStream) SetTimeout(timeoutMs int) {
	s.timeoutMs = timeoutMs
}

// Len returns the number of buffers in the pool.
func (s *MmapStream) Len() int {
	return len(s.buffers)
}

// Next returns the next filled capture buffer, blocking until the driver has
// one. The previously returned frame is requeued and must no longer be used.
func (s *MmapStream) Next() (Frame, error) {
	if s.typ != BufTypeVideoCapture {
		return Frame{}, fmt.Errorf("Next called on %s stream", s.typ)
	}

	if !s.streaming {
		for i := range s.buffers {
			if err := s.queue(i, 0, 0); err != nil {
				return Frame{}, err
			}
		}
		s.free = s.free[:0]
		if err := s.streamOn(); err != nil {
			return Frame{}, err
		}
	} else if s.held >= 0 {
		idx := s.held
		s.held = -1
		if err := s.queue(idx, 0, 0); err != nil {
			return Frame{}, err
		}
	}

	buf, err := s.dequeue()
	if err != nil {
		return Frame{}, err
	}

	idx := int(buf.index)
	s.held = idx
	data := s.buffers[idx]
	if int(buf.bytesused) < len(data) {
		data = data[:buf.bytesused]
	}

	return Frame{
		Index:     idx,
		Data:      data,
		Sequence:  buf.sequence,
		Timestamp: buf.timestamp(),
		Flags:     buf.flags,
	}, nil
}

// Write copies data into a free output buffer and queues it for the driver.
// When every buffer is queued it first waits for the driver to return one.
func (s *MmapStream) Write(data []byte, timestamp time.Duration) error {
	if s.typ != BufTypeVideoOutput {
		return fmt.Errorf("Write called on %s stream", s.typ)
	}

	if len(s.free) == 0 {
		buf, err := s.dequeue()
		if err != nil {
			return err
		}
		s.free = append(s.free, int(buf.index))
	}

	idx := s.free[0]
	if len(data) > len(s.buffers[idx]) {
		return fmt.Errorf("frame of %d bytes exceeds %s buffer of %d bytes", len(data), s.dev.path, len(s.buffers[idx]))
	}

	n := copy(s.buffers[idx], data)
	if err := s.queue(idx, uint32(n), timestamp); err != nil {
		return err
	}
	s.free = s.free[1:]

	if !s.streaming {
		return s.streamOn()
	}
	return nil
}

// Close stops streaming, unmaps every buffer and frees the driver queue.
func (s *MmapStream) Close() error {
	var errs []error

	if s.streaming {
		typ := uint32(s.typ)
		if err := ioctl(s.dev.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
			errs = append(errs, fmt.Errorf("VIDIOC_STREAMOFF on %s: %w", s.dev.path, err))
		}
		s.streaming = false
	}

	for _, b := range s.buffers {
		if err := munmap(b); err != nil {
			errs = append(errs, fmt.Errorf("munmap on %s: %w", s.dev.path, err))
		}
	}
	s.buffers = nil
	s.free = nil
	s.held = -1

	req := v4l2Requestbuffers{
		typ:    uint32(s.typ),
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(s.dev.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		errs = append(errs, fmt.Errorf("VIDIOC_REQBUFS(0) on %s: %w", s.dev.path, err))
	}

	return errors.Join(errs...)
}

func (s *MmapStream) queue(idx int, bytesused uint32, timestamp time.Duration) error {
	buf := v4l2Buffer{
		index:  uint32(idx),
		typ:    uint32(s.typ),
		memory: v4l2MemoryMmap,
	}
	if s.typ == BufTypeVideoOutput {
		buf.bytesused = bytesused
		buf.field = v4l2FieldNone
		buf.setTimestamp(timestamp)
	}
	if err := ioctl(s.dev.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF(%d) on %s: %w", idx, s.dev.path, err)
	}
	return nil
}

func (s *MmapStream) dequeue() (v4l2Buffer, error) {
	if err := waitFD(s.dev.fd, s.typ == BufTypeVideoOutput, s.timeoutMs); err != nil {
		return v4l2Buffer{}, fmt.Errorf("waiting on %s: %w", s.dev.path, err)
	}

	buf := v4l2Buffer{
		typ:    uint32(s.typ),
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(s.dev.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return v4l2Buffer{}, fmt.Errorf("VIDIOC_DQBUF on %s: %w", s.dev.path, err)
	}
	if int(buf.index) >= len(s.buffers) {
		return v4l2Buffer{}, fmt.Errorf("%s returned buffer index %d outside pool of %d", s.dev.path, buf.index, len(s.buffers))
	}
	return buf, nil
}

func (s *MmapStream) streamOn() error {
	typ := uint32(s.typ)
	if err := ioctl(s.dev.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON on %s: %w", s.dev.path, err)
	}
	s.streaming = true
	return nil
}
