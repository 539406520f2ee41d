// Package control implements the control reader (spec.md §4.3): the sole
// consumer of inbound bytes on the StreamPort, dispatching by message type
// and mutating the shared session state.
package control

import (
	"fmt"
	"time"

	"github.com/spice-space/stream-agent/internal/bufpool"
	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/logger"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
	"github.com/spice-space/stream-agent/internal/streamagent/metrics"
	"github.com/spice-space/stream-agent/internal/streamagent/port"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
	"github.com/spice-space/stream-agent/internal/streamagent/wire"
)

// pollRetryInterval bounds how long a blocking Run call waits between
// rechecking quit_requested after a signal interrupts the underlying poll.
const pollRetryInterval = 1 * time.Second

// Reader is the control-message consumer. It owns no transport state beyond
// the StreamPort and session.State it's handed; callers run it from exactly
// one goroutine (the main capture/control task), per spec.md §5.
type Reader struct {
	port    *port.StreamPort
	state   *session.State
	metrics *metrics.Registry
	log     *framelog.Log // nil if diagnostic logging is disabled
}

// NewReader builds a Reader over the given port and shared session state.
// log may be nil.
func NewReader(p *port.StreamPort, state *session.State, m *metrics.Registry, log *framelog.Log) *Reader {
	return &Reader{port: p, state: state, metrics: m, log: log}
}

// Run waits for one inbound message and dispatches it. In blocking mode it
// loops, rechecking quit_requested every pollRetryInterval when the poll
// returns not-ready (its wait elapsed or was interrupted by a signal), until a message
// arrives or quit is requested. In non-blocking mode it returns immediately
// with handled=false if nothing is ready.
//
// A non-nil error is always fatal to the caller: every control-path failure
// is a ProtocolError or IOError with no resync mechanism.
func (r *Reader) Run(blocking bool) (handled bool, err error) {
	for {
		ready, err := r.port.PollReadable(blocking)
		if err != nil {
			return false, err
		}
		if ready {
			break
		}
		if !blocking {
			return false, nil
		}
		if r.state.QuitRequested() {
			return false, nil
		}
		time.Sleep(pollRetryInterval)
	}

	var hdr [wire.HeaderSize]byte
	if err := r.port.ReadExact(hdr[:]); err != nil {
		return false, err
	}
	h, err := wire.DecodeHeader(hdr[:])
	if err != nil {
		return false, err
	}

	switch h.Type {
	case wire.TypeCapabilities:
		err = r.handleCapabilities(h)
	case wire.TypeNotifyError:
		err = r.handleNotifyError(h)
	case wire.TypeStartStop:
		err = r.handleStartStop(h)
	default:
		err = ioerr.NewProtocolError("unknown_type", fmt.Errorf("message type %d", h.Type))
	}
	if err != nil {
		return false, err
	}
	if r.metrics != nil {
		r.metrics.ControlMessages.WithLabelValues(messageTypeName(h.Type)).Inc()
	}
	return true, nil
}

func (r *Reader) handleCapabilities(h wire.Header) error {
	if h.Size > wire.CapabilitiesMaxBytes {
		return ioerr.NewProtocolError("oversize_capabilities", fmt.Errorf("body %d exceeds max %d", h.Size, wire.CapabilitiesMaxBytes))
	}
	body := bufpool.Get(int(h.Size))
	defer bufpool.Put(body)
	if err := r.port.ReadExact(body); err != nil {
		return err
	}
	if r.log != nil {
		r.log.LogControl("Capabilities", body)
	}
	return r.port.WithWriteLock(func(w *port.Writer) error {
		return w.Write(wire.EncodeCapabilitiesReply())
	})
}

func (r *Reader) handleNotifyError(h wire.Header) error {
	maxTotal := uint32(wire.NotifyErrorCodeSize + wire.NotifyErrorMaxTextBytes)
	readLen := h.Size
	oversize := h.Size > maxTotal
	if oversize {
		readLen = maxTotal
	}
	if readLen < wire.NotifyErrorCodeSize {
		return ioerr.NewProtocolError("malformed_notify_error", fmt.Errorf("body %d shorter than error_code", h.Size))
	}

	body := bufpool.Get(int(readLen))
	defer bufpool.Put(body)
	if err := r.port.ReadExact(body); err != nil {
		return err
	}
	if r.log != nil {
		r.log.LogControl("NotifyError", body)
	}

	msg, err := wire.DecodeNotifyError(body)
	if err != nil {
		return err
	}
	logger.Error("remote notified error", "code", msg.Code, "text", msg.Text)

	if oversize {
		return ioerr.NewProtocolError("oversize", fmt.Errorf("notify_error body %d exceeds max %d", h.Size, maxTotal))
	}
	return nil
}

func (r *Reader) handleStartStop(h wire.Header) error {
	body := bufpool.Get(int(h.Size))
	defer bufpool.Put(body)
	if err := r.port.ReadExact(body); err != nil {
		return err
	}
	if r.log != nil {
		r.log.LogControl("StartStop", body)
	}
	ss, err := wire.DecodeStartStop(body)
	if err != nil {
		return err
	}
	r.state.ApplyStartStop(ss.Codecs)
	return nil
}

func messageTypeName(t uint16) string {
	switch t {
	case wire.TypeCapabilities:
		return "Capabilities"
	case wire.TypeNotifyError:
		return "NotifyError"
	case wire.TypeStartStop:
		return "StartStop"
	case wire.TypeFormat:
		return "Format"
	case wire.TypeData:
		return "Data"
	case wire.TypeCursor:
		return "Cursor"
	default:
		return "Unknown"
	}
}
