// Package cursor implements the cursor updater (spec.md §4.6): an
// independent producer that shares the StreamPort write mutex with the
// capture loop and runs for the full session lifetime.
package cursor

import (
	"errors"

	"github.com/spice-space/stream-agent/internal/logger"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
	"github.com/spice-space/stream-agent/internal/streamagent/port"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
	"github.com/spice-space/stream-agent/internal/streamagent/wire"
)

// ErrSourceQuit is returned by a Source's NextChange to signal a clean,
// intentional shutdown (typically because it observed quit_requested while
// waiting) rather than a real failure. Run treats it as a normal exit.
var ErrSourceQuit = errors.New("cursor: source observed quit")

// Source is the external collaborator that yields cursor-shape change
// events from the host windowing surface. A real implementation is out of
// scope (spec.md §1); callers supply whatever backend fits their guest.
type Source interface {
	// NextChange blocks until a cursor-shape change is available and
	// returns its opaque wire payload.
	NextChange() ([]byte, error)
	Close() error
}

// Updater drives the cursor-event loop.
type Updater struct {
	port   *port.StreamPort
	state  *session.State
	source Source
	log    *framelog.Log
}

// New builds a cursor updater over the given write-sharing port and
// session state. log may be nil.
func New(p *port.StreamPort, state *session.State, source Source, log *framelog.Log) *Updater {
	return &Updater{port: p, state: state, source: source, log: log}
}

// Run loops until quit_requested, writing each cursor change as it arrives.
// It is meant to be launched on its own goroutine and joined by the
// supervisor during teardown (spec.md's design notes call for a joinable
// task, not a detached-and-leaked one).
func (u *Updater) Run() error {
	for !u.state.QuitRequested() {
		change, err := u.source.NextChange()
		if err != nil {
			if errors.Is(err, ErrSourceQuit) {
				return nil
			}
			return err
		}
		if u.state.QuitRequested() {
			return nil
		}
		if err := u.port.WithWriteLock(func(w *port.Writer) error {
			return w.Write(wire.EncodeCursor(change))
		}); err != nil {
			logger.Error("cursor write failed", "error", err)
			return err
		}
		if u.log != nil {
			u.log.LogCursor(change)
		}
	}
	return nil
}
