// Package capture implements the capture loop (spec.md §4.5): the state
// machine that drives frame capture, Format/Data emission, and interleaved
// control draining on the main session task.
package capture

import (
	"github.com/google/uuid"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/logger"
	"github.com/spice-space/stream-agent/internal/streamagent/control"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
	"github.com/spice-space/stream-agent/internal/streamagent/metrics"
	"github.com/spice-space/stream-agent/internal/streamagent/plugin"
	"github.com/spice-space/stream-agent/internal/streamagent/port"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
	"github.com/spice-space/stream-agent/internal/streamagent/wire"
)

// State is the capture loop's own run state, distinct from session.State
// (which holds the control-reader-mutated fields shared across components).
type State int

const (
	Idle State = iota
	Capturing
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Loop runs the capture state machine of spec.md §4.5 on the calling
// goroutine, which must be the same goroutine that owns the control.Reader
// (there is exactly one control-reading task).
type Loop struct {
	port     *port.StreamPort
	reader   *control.Reader
	state    *session.State
	registry *plugin.Registry
	metrics  *metrics.Registry
	log      *framelog.Log // nil if diagnostic logging is disabled

	current   State
	active    plugin.FrameCapture
	sessionID string // correlates this capture session's log lines
}

// NewLoop builds a capture loop over the given collaborators. log may be
// nil.
func NewLoop(p *port.StreamPort, reader *control.Reader, state *session.State, registry *plugin.Registry, m *metrics.Registry, log *framelog.Log) *Loop {
	return &Loop{port: p, reader: reader, state: state, registry: registry, metrics: m, log: log, current: Idle}
}

// Run drives the state machine until quit_requested is observed or a fatal
// error occurs. A nil return means the loop stopped because of a
// deliberate quit; any other return value is fatal per spec.md §4.7 step 7.
func (l *Loop) Run() error {
	for {
		if l.state.QuitRequested() {
			l.current = Terminated
			l.teardown()
			return nil
		}

		switch l.current {
		case Idle:
			if err := l.runIdle(); err != nil {
				return err
			}
		case Capturing:
			if err := l.runCapturing(); err != nil {
				return err
			}
		case Terminated:
			l.teardown()
			return nil
		}
	}
}

// runIdle blocks on control reads until streaming is requested or quit is
// requested.
func (l *Loop) runIdle() error {
	_, err := l.reader.Run(true)
	if err != nil {
		return err
	}
	if l.state.QuitRequested() {
		l.current = Terminated
		return nil
	}
	if l.state.StreamingRequested() {
		cap, p, err := l.registry.Select(l.state.ClientCodecs())
		if err != nil {
			return err
		}
		l.sessionID = uuid.NewString()
		logger.Info("capture starting", "plugin", p.Name(), "session_id", l.sessionID)
		l.active = cap
		l.current = Capturing
		if l.metrics != nil {
			l.metrics.Streaming.Set(1)
		}
	}
	return nil
}

// runCapturing performs one capture/emit/drain cycle.
func (l *Loop) runCapturing() error {
	info, err := l.active.CaptureFrame()
	if err != nil {
		return err
	}

	if err := l.emit(info); err != nil {
		if ioerr.IsIOError(err) {
			logger.Error("write failed, falling back to idle", "error", err)
			if l.metrics != nil {
				l.metrics.WriteErrors.Inc()
				l.metrics.FramesDropped.Inc()
			}
			_ = l.active.Close()
			l.active = nil
			l.current = Idle
			if l.metrics != nil {
				l.metrics.Streaming.Set(0)
			}
			return nil
		}
		return err
	}

	if l.metrics != nil {
		l.metrics.FramesCaptured.Inc()
		l.metrics.CaptureFrameSize.Observe(float64(len(info.Buffer)))
	}
	if l.log != nil {
		l.log.LogFrame(info.Buffer)
	}

	if _, err := l.reader.Run(false); err != nil {
		return err
	}
	if l.state.QuitRequested() || !l.state.StreamingRequested() {
		_ = l.active.Close()
		l.active = nil
		if l.metrics != nil {
			l.metrics.Streaming.Set(0)
		}
		if l.state.QuitRequested() {
			l.current = Terminated
		} else {
			l.current = Idle
		}
	}
	return nil
}

// emit writes Format (if the frame has StreamStart set) followed
// by the Data message, all under one write-lock hold so Format always
// immediately precedes its Data message on the wire.
func (l *Loop) emit(info plugin.FrameInfo) error {
	return l.port.WithWriteLock(func(w *port.Writer) error {
		if info.StreamStart {
			if err := w.Write(wire.EncodeFormat(wire.Format{Width: info.Width, Height: info.Height, Codec: info.Codec})); err != nil {
				return err
			}
			if l.metrics != nil {
				l.metrics.FormatChanges.Inc()
			}
		}
		if err := w.Write(wire.EncodeDataHeader(uint32(len(info.Buffer)))); err != nil {
			return err
		}
		return w.Write(info.Buffer)
	})
}

func (l *Loop) teardown() {
	if l.active != nil {
		_ = l.active.Close()
		l.active = nil
	}
}

// Current returns the loop's present state, for tests and diagnostics.
func (l *Loop) Current() State { return l.current }
