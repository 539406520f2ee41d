//go:build linux

package port

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileDevice is the default Device backend: the stream device opened as a
// plain character special file (the common presentation of a virtio-serial
// port, /dev/virtio-ports/...), with readiness checked via unix.Poll on its
// raw file descriptor.
type fileDevice struct {
	f *os.File
}

// OpenFileDevice opens path for non-blocking readiness checks but returns a
// handle used with ordinary blocking Read/Write once readiness is observed,
// per spec.md §4.1.
func OpenFileDevice(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &fileDevice{f: f}, nil
}

func (d *fileDevice) Read(p []byte) (int, error)  { return d.f.Read(p) }
func (d *fileDevice) Write(p []byte) (int, error) { return d.f.Write(p) }
func (d *fileDevice) Close() error                { return d.f.Close() }

// PollReadable uses unix.Poll on the raw fd. In blocking mode it waits at
// most pollInterval; a timeout or an interrupting signal (EINTR) is
// reported as (false, nil) rather than retried internally — the caller is
// expected to recheck quit_requested and call again.
func (d *fileDevice) PollReadable(blocking bool) (bool, error) {
	fd := int(d.f.Fd())
	timeout := 0
	if blocking {
		timeout = int(pollInterval.Milliseconds())
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeout)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}
