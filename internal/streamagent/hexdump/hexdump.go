// Package hexdump formats short byte previews for log lines, the way the
// diagnostic frame log renders payloads in text mode.
package hexdump

import (
	"bytes"
	"fmt"
)

// Preview returns a space-separated hex string of at most the first n bytes
// of b, for embedding in a log line.
func Preview(b []byte, n int) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) > n {
		b = b[:n]
	}
	var buf bytes.Buffer
	for i, by := range b {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%02x", by)
	}
	return buf.String()
}
