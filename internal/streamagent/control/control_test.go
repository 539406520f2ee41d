package control

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
	"github.com/spice-space/stream-agent/internal/streamagent/port"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
	"github.com/spice-space/stream-agent/internal/streamagent/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackDevice is an in-memory port.Device whose inbound bytes are
// preloaded and whose outbound bytes are captured for assertions.
type loopbackDevice struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func (d *loopbackDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.Read(p)
}

func (d *loopbackDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Write(p)
}

func (d *loopbackDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *loopbackDevice) PollReadable(blocking bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.Len() > 0, nil
}

func newReaderWithInbound(t *testing.T, inbound []byte) (*Reader, *loopbackDevice, *session.State) {
	t.Helper()
	dev := &loopbackDevice{}
	dev.in.Write(inbound)
	p := port.New(dev)
	st := session.New()
	return NewReader(p, st, nil, nil), dev, st
}

func TestScenarioS1CapabilityEcho(t *testing.T) {
	inbound := []byte{0x01, 0x00, 0x01, 0x00, 0x04, 0x00, 0x00, 0x00, 0xDE, 0xAD, 0xBE, 0xEF}
	r, dev, _ := newReaderWithInbound(t, inbound)

	handled, err := r.Run(false)
	require.NoError(t, err)
	assert.True(t, handled)

	want := []byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, want, dev.out.Bytes())
}

func TestStartStopUpdatesSessionState(t *testing.T) {
	body := wire.EncodeStartStop([]uint8{1, 3})
	inbound := append(wire.EncodeHeader(wire.TypeStartStop, uint32(len(body))), body...)
	r, _, st := newReaderWithInbound(t, inbound)

	handled, err := r.Run(false)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, st.StreamingRequested())
	assert.True(t, st.AcceptsCodec(1))
	assert.True(t, st.AcceptsCodec(3))
	assert.False(t, st.AcceptsCodec(2))
}

func TestStartStopMalformedIsProtocolError(t *testing.T) {
	body := []byte{0x05, 0x01} // claims 5 codecs, only 1 present
	inbound := append(wire.EncodeHeader(wire.TypeStartStop, uint32(len(body))), body...)
	r, _, _ := newReaderWithInbound(t, inbound)

	_, err := r.Run(false)
	require.Error(t, err)
	assert.True(t, ioerr.IsProtocolError(err))
}

func TestUnknownTypeIsProtocolError(t *testing.T) {
	inbound := wire.EncodeHeader(0x99, 0)
	r, _, _ := newReaderWithInbound(t, inbound)

	_, err := r.Run(false)
	require.Error(t, err)
	assert.True(t, ioerr.IsProtocolError(err))
}

func TestNotifyErrorLogsAndSucceedsWithinCap(t *testing.T) {
	body := make([]byte, wire.NotifyErrorCodeSize+5)
	binary.LittleEndian.PutUint32(body[0:4], 42)
	copy(body[4:], []byte("boom\x00"))
	inbound := append(wire.EncodeHeader(wire.TypeNotifyError, uint32(len(body))), body...)
	r, _, _ := newReaderWithInbound(t, inbound)

	handled, err := r.Run(false)
	require.NoError(t, err)
	assert.True(t, handled)
}

func TestNotifyErrorOversizeFailsAfterReadingUpToCap(t *testing.T) {
	textLen := wire.NotifyErrorMaxTextBytes + 10
	body := make([]byte, wire.NotifyErrorCodeSize+textLen)
	binary.LittleEndian.PutUint32(body[0:4], 7)
	inbound := append(wire.EncodeHeader(wire.TypeNotifyError, uint32(len(body))), body...)
	r, _, _ := newReaderWithInbound(t, inbound)

	_, err := r.Run(false)
	require.Error(t, err)
	assert.True(t, ioerr.IsProtocolError(err))
}

func TestNonBlockingReturnsFalseWhenNothingReady(t *testing.T) {
	r, _, _ := newReaderWithInbound(t, nil)

	handled, err := r.Run(false)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestBlockingReturnsWhenQuitRequested(t *testing.T) {
	r, _, st := newReaderWithInbound(t, nil)
	st.RequestQuit()

	handled, err := r.Run(true)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestHandledMessagesAreRecordedToFrameLog(t *testing.T) {
	body := wire.EncodeStartStop([]uint8{1})
	inbound := append(wire.EncodeHeader(wire.TypeStartStop, uint32(len(body))), body...)

	dev := &loopbackDevice{}
	dev.in.Write(inbound)
	p := port.New(dev)
	st := session.New()

	var logBuf bytes.Buffer
	log := framelog.NewWithWriter(&logBuf, false, framelog.Categories{Control: true})
	r := NewReader(p, st, nil, log)

	handled, err := r.Run(false)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, logBuf.String(), "control:StartStop")
}
