package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	s := bufio.NewScanner(buf)
	var out []map[string]any
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "invalid JSON line: %s", line)
		out = append(out, m)
	}
	require.NoError(t, s.Err())
	return out
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	require.NoError(t, SetLevel("info"))

	Debug("debug message should be filtered")
	Info("info message", "k", 1)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	require.Equal(t, "info message", records[0]["message"])

	buf.Reset()
	require.NoError(t, SetLevel("debug"))
	Debug("visible debug", "a", 2)
	records = decodeLines(t, &buf)
	require.Len(t, records, 1)
	require.Equal(t, "debug", records[0]["level"])
}

func TestFieldExtraction(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	require.NoError(t, SetLevel("debug"))

	l := WithComponent(WithDevice(Logger(), "/dev/virtio-ports/org.spice-space.stream.0"), "capture")
	l.Info().Msg("hello world")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "/dev/virtio-ports/org.spice-space.stream.0", rec["device"])
	require.Equal(t, "capture", rec["component"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
	}
	for in, expect := range cases {
		require.NoError(t, SetLevel(in))
		require.Contains(t, strings.ToUpper(Level()), expect)
	}
	require.Error(t, SetLevel("bogus"))
}
