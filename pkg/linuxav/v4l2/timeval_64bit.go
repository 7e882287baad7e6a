//go:build linux && (amd64 || arm64)

package v4l2

import (
	"syscall"
	"time"
)

func makeTimeval(timeoutMs int) *syscall.Timeval {
	return &syscall.Timeval{
		Sec:  int64(timeoutMs / 1000),
		Usec: int64((timeoutMs % 1000) * 1000),
	}
}

// fdSet returns a set containing only fd.
func fdSet(fd int) *syscall.FdSet {
	set := &syscall.FdSet{}
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
	return set
}

func (b *v4l2Buffer) timestamp() time.Duration {
	return time.Duration(b.tvSec)*time.Second + time.Duration(b.tvUsec)*time.Microsecond
}

func (b *v4l2Buffer) setTimestamp(d time.Duration) {
	b.tvSec = int64(d / time.Second)
	b.tvUsec = int64((d % time.Second) / time.Microsecond)
}
