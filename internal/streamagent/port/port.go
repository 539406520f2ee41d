// Package port implements StreamPort (spec.md §4.1): the single duplex byte
// handle shared by all of the agent's producers and its one consumer, with
// mutually-exclusive framed read and write primitives.
package port

import (
	"io"
	"sync"
	"time"

	"github.com/spice-space/stream-agent/internal/ioerr"
)

// Device is the minimal capability a StreamPort needs from its underlying
// transport: ordinary blocking Read/Write/Close, plus a readiness check that
// each backend implements in whatever way fits it (an epoll/poll syscall on
// a raw fd, or a short-timeout peek read on a library that hides its fd).
type Device interface {
	io.ReadWriteCloser
	// PollReadable waits (if blocking is true) up to pollInterval for at
	// least one byte to become available, or returns immediately with the
	// current readiness. It returns (false, nil) — not an error — if that
	// wait elapses or is interrupted by a signal, so the caller can recheck
	// quit_requested.
	PollReadable(blocking bool) (bool, error)
}

// StreamPort owns a single bidirectional byte handle and guards writers with
// an internal mutex so every logical message (header + body) is written as
// an uninterrupted unit. Reads are serialized by a separate read mutex held
// for each ReadExact call, so reads never wait on writers; a header and its
// body are read by two separate calls, not under one lock hold.
type StreamPort struct {
	dev Device

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// New wraps an already-open Device as a StreamPort.
func New(dev Device) *StreamPort {
	return &StreamPort{dev: dev}
}

// ReadExact reads exactly len(buf) bytes into buf. A short read or any
// underlying failure is a fatal IOError; partial buffers are never returned
// to the caller because the protocol has no resync mechanism.
func (p *StreamPort) ReadExact(buf []byte) error {
	p.readMu.Lock()
	defer p.readMu.Unlock()
	_, err := io.ReadFull(p.dev, buf)
	if err != nil {
		return ioerr.NewIOError("read_exact", err)
	}
	return nil
}

// WriteAll writes buf in its entirety. It is atomic with respect to
// concurrent WriteAll calls because the write mutex is held for the whole
// call; callers that need to send a multi-part logical message (header then
// body) must use WithWriteLock instead so the mutex spans both writes.
func (p *StreamPort) WriteAll(buf []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.writeLocked(buf)
}

func (p *StreamPort) writeLocked(buf []byte) error {
	_, err := p.dev.Write(buf)
	if err != nil {
		return ioerr.NewIOError("write_all", err)
	}
	return nil
}

// WithWriteLock holds the write mutex for the duration of fn, so a caller
// can write a header and then a body (or several parts) as one atomic
// logical message. fn should call Write (which does not take the mutex)
// on the *Writer passed to it.
func (p *StreamPort) WithWriteLock(fn func(w *Writer) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return fn(&Writer{p: p})
}

// Writer is handed to callers of WithWriteLock; its Write method writes
// directly to the device without attempting to re-acquire the write mutex.
type Writer struct{ p *StreamPort }

// Write writes buf to the device. Must only be called while the write mutex
// is held, i.e. from inside a WithWriteLock callback.
func (w *Writer) Write(buf []byte) error {
	return w.p.writeLocked(buf)
}

// PollReadable returns true if at least one byte is ready to read. When
// blocking is true and the poll is interrupted by a signal, it returns
// (false, nil) rather than an error, so the caller can recheck
// quit_requested and retry.
func (p *StreamPort) PollReadable(blocking bool) (bool, error) {
	ready, err := p.dev.PollReadable(blocking)
	if err != nil {
		return false, ioerr.NewIOError("poll_readable", err)
	}
	return ready, nil
}

// Close closes the underlying device.
func (p *StreamPort) Close() error {
	return p.dev.Close()
}

// pollInterval bounds how long a blocking PollReadable implementation may
// wait before re-checking for interruption; kept here so both Device
// backends share the same constant.
const pollInterval = 1 * time.Second
