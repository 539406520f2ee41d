// Package framelog implements the diagnostic frame-log sink named in the
// CLI surface (-l, --log-binary, --log-categories). It is append-only and
// makes no format stability guarantee: the on-disk layout may change
// between versions without notice.
package framelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/streamagent/hexdump"
)

// Categories controls which event kinds get written, mirroring
// --log-categories (a colon-separated list on the CLI).
type Categories struct {
	Frames  bool
	Control bool
	Cursor  bool
}

// Log is an append-only diagnostic sink. It is safe for concurrent use:
// the capture loop, control reader, and cursor updater may all log through
// the same instance.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	binary bool
	cats   Categories
}

// Open creates path if needed (appending to any existing content) and
// returns a Log writing to it. binary
// selects whether frame payloads are written verbatim (true) or as a hex
// preview (false, the default, friendlier for tailing in a terminal).
func Open(path string, binary bool, cats Categories) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ioerr.NewIOError("framelog_open", err)
	}
	return &Log{w: f, closer: f, binary: binary, cats: cats}, nil
}

// NewWithWriter builds a Log over an arbitrary writer (used by tests).
func NewWithWriter(w io.Writer, binary bool, cats Categories) *Log {
	return &Log{w: w, binary: binary, cats: cats}
}

// LogFrame appends one captured frame's payload, if frame logging is
// enabled.
func (l *Log) LogFrame(buf []byte) {
	if !l.cats.Frames {
		return
	}
	l.writeEntry("frame", buf)
}

// LogControl appends a description of a handled control message.
func (l *Log) LogControl(kind string, body []byte) {
	if !l.cats.Control {
		return
	}
	l.writeEntry("control:"+kind, body)
}

// LogCursor appends a cursor-update event.
func (l *Log) LogCursor(buf []byte) {
	if !l.cats.Cursor {
		return
	}
	l.writeEntry("cursor", buf)
}

func (l *Log) writeEntry(kind string, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if l.binary {
		fmt.Fprintf(l.w, "%s %s len=%d\n", ts, kind, len(payload))
		l.w.Write(payload)
		fmt.Fprintln(l.w)
		return
	}
	fmt.Fprintf(l.w, "%s %s len=%d %s\n", ts, kind, len(payload), hexdump.Preview(payload, 64))
}

// Close closes the underlying file, if one was opened via Open.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
