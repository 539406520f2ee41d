package port

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is an in-memory Device used to exercise StreamPort's locking
// discipline without a real file descriptor or tty.
type fakeDevice struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	pollReady bool
	pollErr   error
	closed    bool
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readBuf.Read(p)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeBuf.Write(p)
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) PollReadable(blocking bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollReady, d.pollErr
}

func (d *fakeDevice) feed(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readBuf.Write(b)
}

func (d *fakeDevice) written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.writeBuf.Bytes()...)
}

func TestReadExactHappyPath(t *testing.T) {
	dev := &fakeDevice{}
	dev.feed([]byte("hello!"))
	p := New(dev)

	buf := make([]byte, 6)
	require.NoError(t, p.ReadExact(buf))
	assert.Equal(t, "hello!", string(buf))
}

func TestReadExactShortReadIsFatalIOError(t *testing.T) {
	dev := &fakeDevice{}
	dev.feed([]byte("ab"))
	p := New(dev)

	buf := make([]byte, 5)
	err := p.ReadExact(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteAllWritesWholeBuffer(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev)

	require.NoError(t, p.WriteAll([]byte("payload")))
	assert.Equal(t, "payload", string(dev.written()))
}

func TestWithWriteLockSendsHeaderAndBodyAsOneUnit(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev)

	err := p.WithWriteLock(func(w *Writer) error {
		if err := w.Write([]byte("HEAD")); err != nil {
			return err
		}
		return w.Write([]byte("BODY"))
	})
	require.NoError(t, err)
	assert.Equal(t, "HEADBODY", string(dev.written()))
}

func TestWithWriteLockExcludesConcurrentWriteAll(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = p.WithWriteLock(func(w *Writer) error {
			close(started)
			_ = w.Write([]byte("A"))
			<-release
			return w.Write([]byte("B"))
		})
		close(done)
	}()

	<-started
	writeAllDone := make(chan struct{})
	go func() {
		_ = p.WriteAll([]byte("X"))
		close(writeAllDone)
	}()

	select {
	case <-writeAllDone:
		t.Fatal("WriteAll proceeded while WithWriteLock still held the lock")
	default:
	}

	close(release)
	<-done
	<-writeAllDone

	assert.Equal(t, "ABX", string(dev.written()))
}

func TestPollReadableDelegatesToDevice(t *testing.T) {
	dev := &fakeDevice{pollReady: true}
	p := New(dev)

	ready, err := p.PollReadable(false)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestPollReadableWrapsDeviceError(t *testing.T) {
	dev := &fakeDevice{pollErr: assert.AnError}
	p := New(dev)

	_, err := p.PollReadable(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCloseClosesDevice(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev)

	require.NoError(t, p.Close())
	assert.True(t, dev.closed)
}
