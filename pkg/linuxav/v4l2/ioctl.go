//go:build linux

package v4l2

import (
	"errors"
	"syscall"
	"unsafe"
)

// ErrTimeout is returned when a bounded wait for a buffer expires.
var ErrTimeout = errors.New("v4l2: timed out waiting for buffer")

// Kernel entry points. Tests replace them to stand in for a driver.
var (
	ioctl  = sysIoctl
	open   = openNonBlocking
	close  = syscall.Close
	mmap   = sysMmap
	munmap = syscall.Munmap
	waitFD = selectFD
)

func sysIoctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		if errno == syscall.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

func openNonBlocking(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
}

// openBlocking opens a node for streaming; DQBUF on it sleeps until a buffer
// is ready.
func openBlocking(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_CLOEXEC, 0)
}

func sysMmap(fd int, offset uint32, length uint32) ([]byte, error) {
	return syscall.Mmap(fd, int64(offset), int(length), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
}

// selectFD blocks until fd is readable (or writable) or timeoutMs elapses.
// A timeout of zero or less returns immediately and leaves the wait to the
// blocking ioctl.
func selectFD(fd int, write bool, timeoutMs int) error {
	if timeoutMs <= 0 {
		return nil
	}
	for {
		var rset, wset *syscall.FdSet
		if write {
			wset = fdSet(fd)
		} else {
			rset = fdSet(fd)
		}
		n, err := syscall.Select(fd+1, rset, wset, nil, makeTimeval(timeoutMs))
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTimeout
		}
		return nil
	}
}
